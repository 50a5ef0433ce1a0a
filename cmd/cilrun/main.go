// Command cilrun loads a CIL assembly and runs its entry point, following
// the embedding contract the runtime package exposes (NewRuntime,
// AddAssemblyLoader, AddAssembly, Run) — grounded on cmd/mag/main.go's
// flag-parse-then-run shape.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ili-run/cilrun/assembly"
	"github.com/ili-run/cilrun/diag"
	"github.com/ili-run/cilrun/loader"
	"github.com/ili-run/cilrun/runtime"
)

func main() {
	verbose := flag.Bool("v", false, "verbose opcode-level tracing")
	configDir := flag.String("config", "", "directory containing cilrun.toml (default: entry assembly's directory)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cilrun [-v] [-config dir] <entry-assembly>")
		os.Exit(2)
	}
	entryPath := flag.Arg(0)

	if err := run(entryPath, *configDir, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "cilrun: %v\n", err)
		os.Exit(1)
	}
}

func run(entryPath, configDir string, verbose bool) error {
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", entryPath, err)
	}
	entry, err := assembly.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", entryPath, err)
	}

	if configDir == "" {
		configDir = filepath.Dir(entryPath)
	}
	cfg, err := loader.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.SearchPaths) == 0 {
		cfg.SearchPaths = []string{"."}
	}

	logger := diag.New(verbose)
	rt := runtime.NewRuntime(0, logger)
	cache := loader.OpenCache(filepath.Join(cfg.Dir, ".cilrun-cache.cbor"), cfg)
	rt.AddAssemblyLoader(runtime.AssemblyLoader(cache.Load))
	rt.AddAssembly(entry)

	code, err := rt.Run(entry)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(int(code))
	}
	return nil
}
