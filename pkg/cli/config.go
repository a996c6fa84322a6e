package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".ringbuf"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
	// ConfigDirEnv overrides the base configuration directory
	ConfigDirEnv = "RINGBUF_CONFIG_DIR"
)

var (
	// ErrProfileNotFound is returned when a named profile does not exist.
	ErrProfileNotFound = errors.New("cli: profile not found")

	// ErrUnknownKey is returned by Profile.Set for an unknown setting.
	ErrUnknownKey = errors.New("cli: unknown profile key")
)

// Config represents the main configuration structure for a CLI app
type Config struct {
	// AppName is the application name (e.g., "ringbuf")
	AppName string `yaml:"-"`

	// CurrentProfile is the name of the active profile
	CurrentProfile string `yaml:"current_profile,omitempty"`

	// Profiles maps profile names to buffer layouts
	Profiles map[string]*Profile `yaml:"profiles,omitempty"`

	configPath string
}

// Profile is a named buffer layout. Zero fields fall back to
// DefaultProfile values, see WithDefaults.
type Profile struct {
	Name string `yaml:"name" json:"name"`

	// DataCapacity is the size in bytes of the chapter data ring.
	DataCapacity int `yaml:"data_capacity,omitempty" json:"data_capacity,omitempty"`

	// IndexWords is the number of chapters the index ring can queue.
	IndexWords int `yaml:"index_words,omitempty" json:"index_words,omitempty"`

	// RawCapacity is the size in bytes of the staging ring used for framing.
	RawCapacity int `yaml:"raw_capacity,omitempty" json:"raw_capacity,omitempty"`

	// Delimiter is the frame delimiter in hex, e.g. "0d0a".
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`

	// DelimiterSize pads Delimiter to this many bytes. Zero means the
	// length of the hex string.
	DelimiterSize int `yaml:"delimiter_size,omitempty" json:"delimiter_size,omitempty"`

	// ByteOrder is "big" or "little".
	ByteOrder string `yaml:"byte_order,omitempty" json:"byte_order,omitempty"`

	// KeepDelimiter keeps delimiters at the end of frames.
	KeepDelimiter bool `yaml:"keep_delimiter,omitempty" json:"keep_delimiter,omitempty"`

	// SpoolDir is the badger directory for spooled records.
	SpoolDir string `yaml:"spool_dir,omitempty" json:"spool_dir,omitempty"`

	// ChunkSize is the read size used when feeding input.
	ChunkSize int `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
}

// DefaultProfile returns the built-in layout: newline framed, 4 KiB of
// chapter data, 64 chapters.
func DefaultProfile() *Profile {
	return &Profile{
		Name:         "default",
		DataCapacity: 4096,
		IndexWords:   64,
		RawCapacity:  1024,
		Delimiter:    "0a",
		ByteOrder:    "big",
		ChunkSize:    256,
	}
}

// LoadConfig loads or creates configuration for the specified app
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath loads configuration from a custom path. An empty path
// resolves through Paths, honoring RINGBUF_CONFIG_DIR.
func LoadConfigWithPath(appName, customPath string) (*Config, error) {
	configPath := customPath
	if configPath == "" {
		paths, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = paths.ConfigFile()
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := &Config{
		AppName:    appName,
		Profiles:   make(map[string]*Profile),
		configPath: configPath,
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Save()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	for name, p := range cfg.Profiles {
		if p == nil {
			p = &Profile{}
			cfg.Profiles[name] = p
		}
		p.Name = name
	}

	cfg.AppName = appName
	cfg.configPath = configPath
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Path returns the config file path
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the config directory path
func (c *Config) Dir() string {
	return filepath.Dir(c.configPath)
}

// AddProfile adds or replaces a profile
func (c *Config) AddProfile(name string, p *Profile) error {
	p.Name = name
	c.Profiles[name] = p
	return c.Save()
}

// DeleteProfile removes a profile
func (c *Config) DeleteProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// UseProfile sets the current profile
func (c *Config) UseProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile returns a specific profile
func (c *Config) GetProfile(name string) (*Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}

// ResolveProfile returns the named profile, or the current one if name is
// empty, with defaults applied. With no name and no current profile it
// returns DefaultProfile.
func (c *Config) ResolveProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return DefaultProfile(), nil
	}
	p, err := c.GetProfile(name)
	if err != nil {
		return nil, err
	}
	return p.WithDefaults(), nil
}

// ListProfiles returns all profile names, sorted
func (c *Config) ListProfiles() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// WithDefaults returns a copy of p with zero fields taken from
// DefaultProfile.
func (p *Profile) WithDefaults() *Profile {
	d := DefaultProfile()
	out := *p
	if out.DataCapacity == 0 {
		out.DataCapacity = d.DataCapacity
	}
	if out.IndexWords == 0 {
		out.IndexWords = d.IndexWords
	}
	if out.RawCapacity == 0 {
		out.RawCapacity = d.RawCapacity
	}
	if out.Delimiter == "" {
		out.Delimiter = d.Delimiter
	}
	if out.ByteOrder == "" {
		out.ByteOrder = d.ByteOrder
	}
	if out.ChunkSize == 0 {
		out.ChunkSize = d.ChunkSize
	}
	return &out
}

// ProfileKeys lists the keys accepted by Profile.Set.
var ProfileKeys = []string{
	"data_capacity",
	"index_words",
	"raw_capacity",
	"delimiter",
	"delimiter_size",
	"byte_order",
	"keep_delimiter",
	"spool_dir",
	"chunk_size",
}

// Set assigns a profile field by its YAML key.
func (p *Profile) Set(key, value string) error {
	var err error
	switch key {
	case "data_capacity":
		p.DataCapacity, err = parseSize(value)
	case "index_words":
		p.IndexWords, err = parseSize(value)
	case "raw_capacity":
		p.RawCapacity, err = parseSize(value)
	case "delimiter":
		p.Delimiter = value
	case "delimiter_size":
		p.DelimiterSize, err = parseSize(value)
	case "byte_order":
		p.ByteOrder = strings.ToLower(value)
	case "keep_delimiter":
		p.KeepDelimiter, err = strconv.ParseBool(value)
	case "spool_dir":
		p.SpoolDir = value
	case "chunk_size":
		p.ChunkSize, err = parseSize(value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("cli: set %s: %w", key, err)
	}
	return nil
}

func parseSize(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
