package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// VersionPolicy is "accept" (trust the editor) or "reject-stale".
	VersionPolicy  string   `json:"version_policy" yaml:"version_policy" validate:"oneof=accept reject-stale"`
	FileExtensions []string `json:"file_extensions" yaml:"file_extensions" validate:"min=1,dive,startswith=."`
	// IndexPath is the sqlite file of the workspace index. Empty means a
	// per-workspace file below $XDG_STATE_HOME.
	IndexPath             string `json:"index_path" yaml:"index_path"`
	IndexEnabled          bool   `json:"index_enabled" yaml:"index_enabled"`
	Watch                 bool   `json:"watch" yaml:"watch"`
	RescanIntervalSeconds int    `json:"rescan_interval_seconds" yaml:"rescan_interval_seconds" validate:"gte=0"`
	MetricsAddress        string `json:"metrics_address" yaml:"metrics_address" validate:"omitempty,hostname_port"`
	ScanWorkers           int    `json:"scan_workers" yaml:"scan_workers" validate:"gte=1,lte=64"`
	// GraphAddress is where the account graph is served on request.
	GraphAddress string `json:"graph_address" yaml:"graph_address" validate:"required"`
}

var validate = validator.New()

// Default returns the configuration used when the client sends nothing.
func Default() Config {
	return Config{
		VersionPolicy:         "accept",
		FileExtensions:        []string{".beancount", ".bean"},
		IndexEnabled:          true,
		Watch:                 true,
		RescanIntervalSeconds: 300,
		ScanWorkers:           4,
		GraphAddress:          "127.0.0.1:0",
	}
}

// Merge overlays v, any JSON-encodable value, onto base.
func Merge(base Config, v any) (Config, error) {
	cfg := base
	cfg.FileExtensions = append([]string(nil), base.FileExtensions...)

	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}

	// only fields present in src will overwrite.
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}

	return cfg, cfg.Validate()
}

// LoadFile reads a YAML configuration file on top of the defaults.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
