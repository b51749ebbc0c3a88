package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"ledgerls/internal/manager"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func getXDGStateHome(appName string) (string, error) {
	xdgStateHome := os.Getenv("XDG_STATE_HOME")
	if xdgStateHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		xdgStateHome = filepath.Join(homeDir, ".local", "state")
	}

	appStateDir := filepath.Join(xdgStateHome, appName)

	if err := os.MkdirAll(appStateDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}

	return appStateDir, nil
}

// defaultIndexPath is one database per workspace root below the state home.
func defaultIndexPath(root string) (string, error) {
	stateDir, err := getXDGStateHome(Name)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(root))
	return filepath.Join(stateDir, hex.EncodeToString(sum[:8])+".db"), nil
}

// rootPath picks the workspace root from the initialize request.
func rootPath(params *protocol.InitializeParams) string {
	if params.RootURI != nil && *params.RootURI != "" {
		return manager.URIToPath(*params.RootURI)
	}
	if len(params.WorkspaceFolders) > 0 {
		return manager.URIToPath(params.WorkspaceFolders[0].URI)
	}
	if params.RootPath != nil {
		return *params.RootPath
	}
	return ""
}
