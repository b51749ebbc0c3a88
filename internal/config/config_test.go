package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Merge(Default(), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlay(t *testing.T) {
	cfg, err := Merge(Default(), map[string]any{
		"version_policy":  "reject-stale",
		"file_extensions": []string{".ledger"},
	})
	require.NoError(t, err)
	assert.Equal(t, "reject-stale", cfg.VersionPolicy)
	assert.Equal(t, []string{".ledger"}, cfg.FileExtensions)
	assert.Equal(t, 4, cfg.ScanWorkers)
	assert.Equal(t, []string{".beancount", ".bean"}, Default().FileExtensions)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]any{
		"policy":     {"version_policy": "sometimes"},
		"extension":  {"file_extensions": []string{"beancount"}},
		"workers":    {"scan_workers": 0},
		"interval":   {"rescan_interval_seconds": -1},
		"metrics":    {"metrics_address": "not an address"},
		"extensions": {"file_extensions": []string{}},
		"graph":      {"graph_address": ""},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Merge(Default(), opts)
			require.Error(t, err)
			var verrs validator.ValidationErrors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}

func TestMergeKeepsUnsetFields(t *testing.T) {
	cfg, err := Merge(Default(), map[string]any{"watch": false, "metrics_address": "localhost:9102"})
	require.NoError(t, err)
	assert.False(t, cfg.Watch)
	assert.Equal(t, "localhost:9102", cfg.MetricsAddress)
	assert.True(t, cfg.IndexEnabled)
}

func TestLoadFileAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerls.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version_policy: reject-stale\nindex_enabled: false\nscan_workers: 8\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "reject-stale", cfg.VersionPolicy)
	assert.False(t, cfg.IndexEnabled)
	assert.Equal(t, 8, cfg.ScanWorkers)

	merged, err := Merge(cfg, map[string]any{"scan_workers": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, merged.ScanWorkers)
	assert.Equal(t, "reject-stale", merged.VersionPolicy)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_workers: [1"), 0o644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}
