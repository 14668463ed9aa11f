// Package config - Runtime configuration for the cellshader server and CLI.
//
// Values are resolved in order: built-in defaults, an optional YAML file, then
// CELLSHADER_* environment variables. Command line flags are bound on top by the
// cellshader command.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CELLSHADER_"

// Backend names.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

// Config holds every tunable of the application.
type Config struct {
	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxUploadBytes caps the size of an upload request.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MaxConcurrentRenders bounds simultaneous pipeline runs in the server.
	MaxConcurrentRenders int `yaml:"max_concurrent_renders"`
	// RenderTimeout is how long a request waits for a render before giving up.
	RenderTimeout time.Duration `yaml:"render_timeout"`

	// UploadDir receives uploads; renders go to its cell-shaded subdirectory.
	UploadDir string `yaml:"upload_dir"`
	// MetadataFile is the JSON side-file of the image library. Empty means
	// DefaultMetadataName inside UploadDir.
	MetadataFile string `yaml:"metadata_file"`

	// Backend selects the pipeline implementation.
	Backend string `yaml:"backend"`
	// Seed fixes the clustering RNG. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`
	// JPEGQuality is used when encoding JPEG renders.
	JPEGQuality int `yaml:"jpeg_quality"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:             "info",
		LogFormat:            "console",
		Host:                 "0.0.0.0",
		Port:                 5000,
		MaxUploadBytes:       16 << 20,
		MaxConcurrentRenders: 2,
		RenderTimeout:        2 * time.Minute,
		UploadDir:            "uploads",
		MetadataFile:         "",
		Backend:              BackendNative,
		Seed:                 0,
		JPEGQuality:          95,
	}
}

// Load returns the defaults overlaid with the YAML file at path (when path is
// not empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the keys present in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config %s", path)
	}
	return nil
}

// ApplyEnv overlays CELLSHADER_* variables found through lookup.
//
// Arguments:
//   - lookup: Environment accessor, usually os.LookupEnv.
//
// Returns:
//   - error: The first variable that could not be parsed.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("HOST", &c.Host)
	str("UPLOAD_DIR", &c.UploadDir)
	str("METADATA_FILE", &c.MetadataFile)
	str("BACKEND", &c.Backend)

	ints := []struct {
		name string
		dst  *int
	}{
		{"PORT", &c.Port},
		{"MAX_CONCURRENT_RENDERS", &c.MaxConcurrentRenders},
		{"JPEG_QUALITY", &c.JPEGQuality},
	}
	for _, f := range ints {
		v, ok := lookup(EnvPrefix + f.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%s%s", EnvPrefix, f.name)
		}
		*f.dst = n
	}

	if v, ok := lookup(EnvPrefix + "MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%sMAX_UPLOAD_BYTES", EnvPrefix)
		}
		c.MaxUploadBytes = n
	}
	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "%sSEED", EnvPrefix)
		}
		c.Seed = n
	}
	if v, ok := lookup(EnvPrefix + "RENDER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "%sRENDER_TIMEOUT", EnvPrefix)
		}
		c.RenderTimeout = d
	}
	return nil
}

// DefaultMetadataName is the library side-file kept next to the uploads.
const DefaultMetadataName = "images_metadata.json"

// MetadataPath returns MetadataFile, or DefaultMetadataName inside UploadDir
// when no file is configured.
func (c Config) MetadataPath() string {
	if c.MetadataFile != "" {
		return c.MetadataFile
	}
	return filepath.Join(c.UploadDir, DefaultMetadataName)
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Validate implements validation.Validatable.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "warning", "error")),
		validation.Field(&c.LogFormat, validation.In("console", "json")),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxConcurrentRenders, validation.Required, validation.Min(1)),
		validation.Field(&c.RenderTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.UploadDir, validation.Required),
		validation.Field(&c.Backend, validation.Required, validation.In(BackendNative, BackendOpenCV)),
		validation.Field(&c.JPEGQuality, validation.Min(1), validation.Max(100)),
	)
}
