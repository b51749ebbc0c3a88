package manager

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// CanonicalURI normalizes a document URI for use as a store key. file URIs
// are decoded and their paths cleaned; anything else is kept verbatim.
func CanonicalURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	p := path.Clean(u.Path)
	if p == "." {
		p = "/"
	}
	return "file://" + strings.ToLower(u.Host) + p
}

// URIToPath converts a file URI into a local filesystem path.
func URIToPath(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "file" {
		return uri
	}
	return filepath.FromSlash(u.Path)
}

// PathToURI converts an absolute filesystem path into a file URI.
func PathToURI(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String()
}
