package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the ringbuf directory structure
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string

	// Root replaces ~/.ringbuf when set, see ConfigDirEnv
	Root string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	root := os.Getenv(ConfigDirEnv)
	home, err := os.UserHomeDir()
	if err != nil && root == "" {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
		Root:    root,
	}, nil
}

// BaseDir returns the base directory (~/.ringbuf)
func (p *Paths) BaseDir() string {
	if p.Root != "" {
		return p.Root
	}
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.ringbuf/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.ringbuf/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns the data directory (~/.ringbuf/<app>/data)
func (p *Paths) DataDir() string {
	return filepath.Join(p.AppDir(), "data")
}

// SpoolDir returns the default badger spool directory
// (~/.ringbuf/<app>/data/spool)
func (p *Paths) SpoolDir() string {
	return filepath.Join(p.DataDir(), "spool")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0755)
}
