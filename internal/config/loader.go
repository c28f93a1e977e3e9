package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// step is one stage applied to a decoded config.
type step func(*Config) error

func withDefaults(c *Config) error {
	c.applyDefaults()
	return nil
}

func validated(c *Config) error {
	return c.Validate()
}

// Load decodes the YAML file at path. ${VAR} and ${VAR:-fallback}
// references are replaced from the environment before decoding, and keys
// that match no field are rejected.
func Load(path string) (*Config, error) {
	return load(path)
}

// LoadWithDefaults is Load followed by filling unset fields with defaults.
func LoadWithDefaults(path string) (*Config, error) {
	return load(path, withDefaults)
}

// LoadAndValidate is LoadWithDefaults followed by Validate.
func LoadAndValidate(path string) (*Config, error) {
	return load(path, withDefaults, validated)
}

func load(path string, steps ...step) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	cfg, err := decode(expandEnv(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	for _, s := range steps {
		if err := s(cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	return cfg, nil
}

func decode(doc string) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(doc)))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// expandEnv substitutes environment references. An unset or empty
// variable with a ":-" fallback takes the fallback.
func expandEnv(s string) string {
	return os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		if v := os.Getenv(name); v != "" || !hasFallback {
			return v
		}
		return fallback
	})
}

// LoadEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		switch {
		case err == nil, errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("env file %s: %w", p, err)
		}
	}
	return nil
}
