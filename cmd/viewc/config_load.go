package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"viewc/internal/config"
	"viewc/internal/driver"
)

// loadConfig reads --config or the viewc.toml governing the working
// directory, falling back to the built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return config.Load(path)
	}
	cfg, found, err := config.LoadFrom(".")
	if err != nil {
		return nil, err
	}
	if found {
		driver.Logger().Debug("configuration loaded from " + cfg.Path)
	}
	return cfg, nil
}

// viewPaths returns the views named on the command line or every view below
// the root.
func viewPaths(d *driver.Driver, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	paths, err := d.ListViews()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no views found under %s", d.Root())
	}
	return paths, nil
}
