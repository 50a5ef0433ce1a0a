package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ili-run/cilrun/assembly"
)

// Loader is the runtime's callback shape from spec §3/§9: given a module
// name, return the matching assembly or nil if this loader has no opinion.
// The runtime tries an ordered chain of these, first non-nil wins.
type Loader func(name string) (*assembly.Assembly, error)

// resolvePath searches cfg's search paths, in order, for "<name>" and
// "<name>.dll", returning the first match's path. Shared by Filesystem and
// Cache so both agree on where a name resolves to.
func resolvePath(cfg *Config, name string) (string, bool) {
	candidates := []string{name, name + ".dll"}
	for _, root := range cfg.SearchPaths {
		dir := root
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.Dir, root)
		}
		for _, c := range candidates {
			path := filepath.Join(dir, c)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// Filesystem returns a Loader that looks for "<name>" and "<name>.dll"
// under each of cfg's search paths, in order, parsing the first file it
// finds. A file that exists but fails to parse is a hard error, not a
// missed match — a loader later in the chain never gets a chance to mask a
// genuine parse failure.
func Filesystem(cfg *Config) Loader {
	return func(name string) (*assembly.Assembly, error) {
		path, ok := resolvePath(cfg, name)
		if !ok {
			return nil, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loader: filesystem: read %s: %w", path, err)
		}
		a, err := assembly.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("loader: filesystem: parse %s: %w", path, err)
		}
		return a, nil
	}
}
