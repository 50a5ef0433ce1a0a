// Package loader provides assembly-loader callbacks for the runtime's
// pluggable loader chain (spec §3/§4.6/§9: "the loader chain is an ordered
// list of functions from name to optional assembly"). It is embedding
// support, not core — analogous to the teacher's manifest package, which
// this package's Config is directly grounded on.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is cilrun.toml's shape: where to look for referenced assemblies
// and how verbose to be, grounded on manifest.Manifest/manifest.Load.
type Config struct {
	SearchPaths []string `toml:"search_paths"`
	Entry       string   `toml:"entry"`
	Verbose     bool     `toml:"verbose"`

	// Dir is the directory containing cilrun.toml (set at load time).
	Dir string `toml:"-"`
}

// LoadConfig parses a cilrun.toml file from dir. A missing file is not an
// error — the caller gets a Config with only Dir set and no search paths.
// A file that names no search paths gets "." (dir itself).
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, "cilrun.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			abs, _ := filepath.Abs(dir)
			return &Config{Dir: abs}, nil
		}
		return nil, fmt.Errorf("loader: cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("loader: parse error in %s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: cannot resolve path %s: %w", dir, err)
	}
	if len(c.SearchPaths) == 0 {
		c.SearchPaths = []string{"."}
	}
	return &c, nil
}
