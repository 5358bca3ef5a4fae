// Package config resolves fspotfs settings from command-line flags,
// FSPOTFS_* environment variables, a YAML file and built-in defaults, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/fspotfs/fspotfs/catalog"
	"github.com/fspotfs/fspotfs/internal/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FSPOTFS_"

// Config holds the fspotfs configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Mount   MountConfig   `yaml:"mount"`
	Import  ImportConfig  `yaml:"import"`
	Log     LogConfig     `yaml:"log"`
}

// CatalogConfig locates the F-Spot catalog.
type CatalogConfig struct {
	Path          string `yaml:"path"`
	SchemaVersion string `yaml:"schema_version"`
	// Watch reloads the tag tree when another program edits the catalog.
	Watch bool `yaml:"watch"`
}

// MountConfig controls the mounted view.
type MountConfig struct {
	Mountpoint string `yaml:"mountpoint"`
	// Repeated lists photos under every ancestor of their tags instead of
	// only the deepest one.
	Repeated bool `yaml:"repeated"`
}

// ImportConfig controls file creation inside the mount.
type ImportConfig struct {
	Enabled        bool   `yaml:"enabled"`
	CollectionRoot string `yaml:"collection_root"`
	SpoolDir       string `yaml:"spool_dir"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Debug also traces every FUSE request.
	Debug bool `yaml:"debug"`
}

// configHome returns $XDG_CONFIG_HOME, falling back to ~/.config.
func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config"
	}
	return filepath.Join(home, ".config")
}

// DefaultPath is the config file read when none is named.
func DefaultPath() string {
	return filepath.Join(configHome(), "fspotfs", "config.yaml")
}

// DefaultCatalogPath is where F-Spot keeps its catalog.
func DefaultCatalogPath() string {
	return filepath.Join(configHome(), "f-spot", "photos.db")
}

// Default returns the built-in configuration.
func Default() *Config {
	mountpoint := ".photos"
	if home, err := os.UserHomeDir(); err == nil {
		mountpoint = filepath.Join(home, ".photos")
	}
	return &Config{
		Catalog: CatalogConfig{
			Path:          DefaultCatalogPath(),
			SchemaVersion: catalog.DefaultSchemaVersion,
			Watch:         true,
		},
		Mount: MountConfig{
			Mountpoint: mountpoint,
		},
		Import: ImportConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: logger.FormatText,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path reads DefaultPath when it exists; a named file
// must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- config path is user supplied
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from FSPOTFS_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		b, err := parseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = b
	}

	str("CATALOG", &c.Catalog.Path)
	str("SCHEMA_VERSION", &c.Catalog.SchemaVersion)
	boolean("WATCH", &c.Catalog.Watch)
	str("MOUNTPOINT", &c.Mount.Mountpoint)
	boolean("REPEATED", &c.Mount.Repeated)
	boolean("IMPORT", &c.Import.Enabled)
	str("COLLECTION_ROOT", &c.Import.CollectionRoot)
	str("SPOOL_DIR", &c.Import.SpoolDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	boolean("DEBUG", &c.Log.Debug)

	return errors.Join(errs...)
}

// parseBool accepts "yes" and "no" on top of strconv.ParseBool.
func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// Validate checks the resolved configuration. The catalog must already exist:
// fspotfs never creates one behind the user's back.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return errors.New("catalog path is required")
	}
	info, err := os.Stat(c.Catalog.Path)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", c.Catalog.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("catalog %s is a directory", c.Catalog.Path)
	}
	if !catalog.ValidVersion(c.Catalog.SchemaVersion) {
		return fmt.Errorf("invalid schema version %q (want digits separated by dots)", c.Catalog.SchemaVersion)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if !logger.ValidFormat(c.Log.Format) {
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Log.Format)
	}
	return nil
}

// ValidateMount additionally requires a mountpoint.
func (c *Config) ValidateMount() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Mount.Mountpoint == "" {
		return errors.New("mountpoint is required")
	}
	return nil
}

// ImportActive reports whether files created in the mount are imported.
func (c *Config) ImportActive() bool {
	return c.Import.Enabled && c.Import.CollectionRoot != ""
}

// Expand makes every path absolute, expanding a leading ~.
func (c *Config) Expand() error {
	for _, p := range []*string{&c.Catalog.Path, &c.Mount.Mountpoint, &c.Import.CollectionRoot, &c.Import.SpoolDir} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// expandPath expands ~ and makes the path absolute. Empty stays empty.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return abs, nil
}

// Flags are the command-line overrides shared by the fspotfs commands.
type Flags struct {
	set *pflag.FlagSet

	ConfigFile     string
	catalogPath    string
	schemaVersion  string
	watch          bool
	mountpoint     string
	repeated       bool
	importEnabled  bool
	collectionRoot string
	spoolDir       string
	logLevel       string
	logFormat      string
	debug          bool
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{set: fs}
	fs.StringVar(&f.ConfigFile, "config", "", "config file (default "+DefaultPath()+")")
	fs.StringVar(&f.catalogPath, "catalog", "", "F-Spot catalog (default "+DefaultCatalogPath()+")")
	fs.StringVar(&f.schemaVersion, "schema-version", "", "expected catalog schema version")
	fs.BoolVar(&f.watch, "watch", true, "reload tags when the catalog changes on disk")
	fs.BoolVar(&f.repeated, "repeated", false, "list photos under every ancestor tag")
	fs.BoolVar(&f.importEnabled, "import", true, "import files created in the mount")
	fs.StringVar(&f.collectionRoot, "collection", "", "photo collection root for imports")
	fs.StringVar(&f.spoolDir, "spool-dir", "", "directory for pending uploads")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format (text, json)")
	fs.BoolVarP(&f.debug, "debug", "d", false, "trace FUSE requests")
	return f
}

// Load resolves the full configuration, flags winning over everything else.
// A non-empty mountpoint, usually a positional argument, wins over all.
func (f *Flags) Load(mountpoint string) (*Config, error) {
	cfg, err := Load(f.ConfigFile)
	if err != nil {
		return nil, err
	}
	f.Apply(cfg)
	if mountpoint != "" {
		cfg.Mount.Mountpoint = mountpoint
	}
	if err := cfg.Expand(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply copies the flags the user actually set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	changed := func(name string) bool {
		fl := f.set.Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("catalog") {
		cfg.Catalog.Path = f.catalogPath
	}
	if changed("schema-version") {
		cfg.Catalog.SchemaVersion = f.schemaVersion
	}
	if changed("watch") {
		cfg.Catalog.Watch = f.watch
	}
	if changed("repeated") {
		cfg.Mount.Repeated = f.repeated
	}
	if changed("import") {
		cfg.Import.Enabled = f.importEnabled
	}
	if changed("collection") {
		cfg.Import.CollectionRoot = f.collectionRoot
	}
	if changed("spool-dir") {
		cfg.Import.SpoolDir = f.spoolDir
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("debug") {
		cfg.Log.Debug = f.debug
	}
}
