package cli

import (
	"os"
	"path/filepath"
)

// Paths lays out the files of one app:
//
//	~/.vibeoracle/<app>/config.yaml
//	~/.vibeoracle/<app>/data/
type Paths struct {
	AppName string
	HomeDir string
}

// NewPaths returns the paths of appName under the user's home.
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{AppName: appName, HomeDir: home}, nil
}

func (p *Paths) BaseDir() string    { return filepath.Join(p.HomeDir, DefaultBaseDir) }
func (p *Paths) AppDir() string     { return filepath.Join(p.BaseDir(), p.AppName) }
func (p *Paths) ConfigFile() string { return filepath.Join(p.AppDir(), DefaultConfigFile) }
func (p *Paths) DataDir() string    { return filepath.Join(p.AppDir(), "data") }

// EnsureDataDir creates the data directory, private to the owner.
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0700)
}
