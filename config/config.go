// Package config handles latebind.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents a latebind.toml file.
type Config struct {
	Client Client `toml:"client"`
	Server Server `toml:"server"`
	Log    Log    `toml:"log"`

	// Dir is the directory containing the latebind.toml file (set at load time).
	Dir string `toml:"-"`
}

// Client configures the remote-dispatch client.
type Client struct {
	Address string `toml:"address"`
}

// Server configures the dispatch server.
type Server struct {
	Listen string `toml:"listen"`
	Store  string `toml:"store"`
}

// Log configures logging output.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no latebind.toml exists.
func Default() *Config {
	return &Config{
		Client: Client{Address: "127.0.0.1:7399"},
		Server: Server{Listen: "127.0.0.1:7399", Store: "latebind.db"},
	}
}

// Load parses a latebind.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "latebind.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	def := Default()
	if c.Client.Address == "" {
		c.Client.Address = def.Client.Address
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
	if c.Server.Store == "" {
		c.Server.Store = def.Server.Store
	}

	return &c, nil
}

// FindAndLoad walks up from startDir to find a latebind.toml file, then
// loads and returns the config. Returns defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "latebind.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the server's database file.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Server.Store) || c.Dir == "" {
		return c.Server.Store
	}
	return filepath.Join(c.Dir, c.Server.Store)
}
