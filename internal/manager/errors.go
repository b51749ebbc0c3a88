package manager

import "fmt"

var (
	// ErrUnknownDocument is returned for URIs that were never opened or have
	// since been closed.
	ErrUnknownDocument = fmt.Errorf("unknown document")

	// ErrMalformedEdit is returned when an incremental edit does not address
	// valid coordinates. The document keeps its prior content and version.
	ErrMalformedEdit = fmt.Errorf("malformed edit")

	// ErrStaleVersion is returned under the reject-stale policy when a change
	// does not carry a version greater than the recorded one.
	ErrStaleVersion = fmt.Errorf("stale document version")
)
