// Package config loads the optional portal-setup.yaml file that tunes the
// initializer: which package manager to run, how long to wait for it,
// additional directories, and the local development database settings.
//
// Every field is optional. A project without the file gets the same
// behaviour as a run with no flags and a five minute install timeout.
// Values set on the command line override the file; see the cli package
// for that precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/portal-setup/internal/layout"
	"github.com/shinji-kodama/portal-setup/internal/pkgjson"
)

// FileName is the config file looked up in the project directory.
const FileName = "portal-setup.yaml"

// Defaults mirror the values the portal application itself assumes.
const (
	DefaultInstallTimeout = 300 * time.Second
	DefaultDatabaseImage  = "mongo:7"
	DefaultDatabasePort   = 27017
	DefaultDatabaseName   = "lab_exam_portal"
	DefaultAppPort        = 3000
)

// Duration wraps time.Duration so YAML accepts either a Go duration
// string ("5m", "90s") or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
	if secs, err := strconv.Atoi(value.Value); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// MarshalJSON renders the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

// Config is the decoded portal-setup.yaml.
type Config struct {
	// PackageManager overrides package manager detection ("npm", "pnpm", "yarn", "bun").
	PackageManager string `yaml:"packageManager,omitempty" json:"packageManager,omitempty"`

	// InstallTimeout bounds the dependency installation child process.
	InstallTimeout Duration `yaml:"installTimeout,omitempty" json:"installTimeout,omitempty"`

	// ExtraDirectories are created after the fixed portal directories.
	ExtraDirectories []string `yaml:"extraDirectories,omitempty" json:"extraDirectories,omitempty"`

	// SkipInstall disables the dependency installation step.
	SkipInstall bool `yaml:"skipInstall,omitempty" json:"skipInstall,omitempty"`

	// GitInit runs `git init` when the project is not yet a repository.
	GitInit bool `yaml:"gitInit,omitempty" json:"gitInit,omitempty"`

	// Database configures the local MongoDB container used by `db up`.
	Database Database `yaml:"database" json:"database"`

	// App holds settings of the portal application itself.
	App App `yaml:"app" json:"app"`
}

// Database configures the local development MongoDB container.
type Database struct {
	Image         string `yaml:"image,omitempty" json:"image,omitempty"`
	ContainerName string `yaml:"containerName,omitempty" json:"containerName,omitempty"`
	Port          int    `yaml:"port,omitempty" json:"port,omitempty"`
	DBName        string `yaml:"dbName,omitempty" json:"dbName,omitempty"`
}

// App holds settings of the portal application.
type App struct {
	// Port is the HTTP port the portal listens on (PORT in .env).
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values. PackageManager stays empty so that
// detection from package.json can still run.
func (c *Config) applyDefaults() {
	if c.InstallTimeout == 0 {
		c.InstallTimeout = Duration(DefaultInstallTimeout)
	}
	if c.Database.Image == "" {
		c.Database.Image = DefaultDatabaseImage
	}
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDatabasePort
	}
	if c.Database.DBName == "" {
		c.Database.DBName = DefaultDatabaseName
	}
	if c.App.Port == 0 {
		c.App.Port = DefaultAppPort
	}
}

// Timeout returns InstallTimeout as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.InstallTimeout)
}

// Validate checks field values after defaults are applied.
func (c *Config) Validate() error {
	if c.PackageManager != "" && !pkgjson.IsSupportedManager(c.PackageManager) {
		return fmt.Errorf("packageManager: unsupported value %q (valid: npm, pnpm, yarn, bun)", c.PackageManager)
	}
	if c.InstallTimeout < 0 {
		return fmt.Errorf("installTimeout: must not be negative")
	}
	for _, dir := range c.ExtraDirectories {
		if err := layout.ValidateRelative(dir); err != nil {
			return fmt.Errorf("extraDirectories: %w", err)
		}
	}
	if err := validatePort("database.port", c.Database.Port); err != nil {
		return err
	}
	return validatePort("app.port", c.App.Port)
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s: %d out of range (1-65535)", field, port)
	}
	return nil
}

// Decode parses YAML from r. Unknown keys are rejected so typos surface
// instead of being silently ignored.
func Decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config file at path. A missing file yields defaults
// unless required is true.
func Load(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return Default(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadForProject loads explicitPath if given (it must exist), otherwise
// FileName from projectDir if present. It returns the path that was
// consulted alongside the config.
func LoadForProject(projectDir, explicitPath string) (*Config, string, error) {
	if explicitPath != "" {
		cfg, err := Load(explicitPath, true)
		return cfg, explicitPath, err
	}
	path := filepath.Join(projectDir, FileName)
	cfg, err := Load(path, false)
	return cfg, path, err
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
