// Package config loads and saves filepack settings.
//
// The file lives at ~/.filepack/config.yaml unless FILEPACK_CONFIG names
// another path. Paths ending in .toml are read and written as TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mcdonaldj/filepack/internal/adapters/ziparchiver"
	"github.com/mcdonaldj/filepack/internal/content"
	"github.com/mcdonaldj/filepack/internal/ref"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "FILEPACK_CONFIG"

type Config struct {
	Encoding    string      `yaml:"encoding" toml:"encoding"`
	Convention  string      `yaml:"convention" toml:"convention"`
	TargetDir   string      `yaml:"target_dir,omitempty" toml:"target_dir,omitempty"`
	Compression Compression `yaml:"compression" toml:"compression"`
}

// Compression configures how archives are written.
type Compression struct {
	Method string `yaml:"method" toml:"method"`
	Level  int    `yaml:"level" toml:"level"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Encoding:   content.DefaultEncoding,
		Convention: string(ref.DefaultConvention),
		Compression: Compression{
			Method: string(ziparchiver.Deflate),
			Level:  flate.DefaultCompression,
		},
	}
}

// ConfigPath returns the config file location.
func ConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return ExpandPath(p)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".filepack", "config.yaml"), nil
}

// Load reads the config from ConfigPath, falling back to defaults when
// the file does not exist.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. Fields missing from the file keep
// their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to ConfigPath.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks that every setting names something filepack supports.
func (c *Config) Validate() error {
	var errs []error
	if _, err := content.LookupEncoding(c.Encoding); err != nil {
		errs = append(errs, err)
	}
	if _, err := ref.ParseConvention(c.Convention); err != nil {
		errs = append(errs, err)
	}
	if _, err := ziparchiver.ParseMethod(c.Compression.Method); err != nil {
		errs = append(errs, err)
	}
	if c.Compression.Level < flate.HuffmanOnly || c.Compression.Level > flate.BestCompression {
		errs = append(errs, fmt.Errorf("compression level %d out of range [%d, %d]",
			c.Compression.Level, flate.HuffmanOnly, flate.BestCompression))
	}
	return errors.Join(errs...)
}

// ConventionValue returns the parsed archive naming convention.
func (c *Config) ConventionValue() ref.Convention {
	conv, err := ref.ParseConvention(c.Convention)
	if err != nil {
		return ref.DefaultConvention
	}
	return conv
}

// ArchiverOptions returns the zip archiver options for the compression settings.
func (c *Config) ArchiverOptions() []ziparchiver.Option {
	method, err := ziparchiver.ParseMethod(c.Compression.Method)
	if err != nil {
		method = ziparchiver.Deflate
	}
	return []ziparchiver.Option{
		ziparchiver.WithMethod(method),
		ziparchiver.WithLevel(c.Compression.Level),
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ExpandPath expands ~ to home directory
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot expand ~: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
