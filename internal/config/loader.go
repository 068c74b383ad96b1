package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// decoders maps a file extension to the format that parses it. Files
// with any other extension, or none, are read as TOML.
var decoders = map[string]struct {
	name   string
	decode func(data []byte, cfg *Config) error
}{
	".toml": {"TOML", decodeTOML},
	".json": {"JSON", func(data []byte, cfg *Config) error { return json.Unmarshal(data, cfg) }},
	".yaml": {"YAML", func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) }},
	".yml":  {"YAML", func(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) }},
}

func decodeTOML(data []byte, cfg *Config) error {
	_, err := toml.Decode(string(data), cfg)
	return err
}

// Load reads the eitype configuration at path (ConfigPath when empty),
// then applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// loadFile decodes path over the defaults, so unset keys keep their
// default values.
func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	format, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		format = decoders[".toml"]
	}
	if err := format.decode(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s is not valid %s: %w", path, format.name, err)
	}
	return cfg, nil
}
