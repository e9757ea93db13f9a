package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides are session values given on the command line. Empty fields keep
// what the file says.
type Overrides struct {
	URL    string
	UserID string
}

func (o Overrides) apply(c *ClientConfig) {
	if o.URL != "" {
		c.Session.URL = o.URL
	}
	if o.UserID != "" {
		c.Session.UserID = o.UserID
	}
}

// Resolve builds the client configuration: the file at path (defaults only
// when path is empty), then defaults, then overrides, then validation.
func Resolve(path string, o Overrides) (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.applyDefaults()
	o.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML config file. No defaults are applied.
func Load(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands ${VAR} references and decodes the YAML. Unknown keys are
// rejected so a misspelled period does not silently fall back to its default.
func Parse(data []byte) (*ClientConfig, error) {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)

	var cfg ClientConfig
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// Default returns a config with every default applied and no session set.
func Default() *ClientConfig {
	cfg := &ClientConfig{}
	cfg.applyDefaults()
	return cfg
}
