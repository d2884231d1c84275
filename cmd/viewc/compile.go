package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"viewc/internal/driver"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [views...]",
	Short: "Compile views into Go builder files",
	Long:  "Compile the given views, or every view below the configured root, and write one Go file per view.",
	RunE:  compileExecution,
}

func init() {
	compileCmd.Flags().String("out", "", "output directory (default from viewc.toml)")
	compileCmd.Flags().String("package", "", "package name of generated files")
	compileCmd.Flags().Int("jobs", 0, "max parallel compilations (0=GOMAXPROCS)")
	compileCmd.Flags().Bool("no-cache", false, "disable the disk cache")
	compileCmd.Flags().String("ui", "auto", "progress UI (auto|on|off, default from $VIEWC_UI)")
}

func compileExecution(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("out") {
		out, _ := flags.GetString("out")
		cfg.Compile.Out = out
	}
	if flags.Changed("package") {
		pkg, _ := flags.GetString("package")
		cfg.Compile.Package = pkg
	}
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return err
	}
	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiValue, flags.Changed("ui"), os.Getenv(uiModeEnv))
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	timings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}

	var cache *driver.DiskCache
	if cfg.Compile.Cache && !noCache {
		cache, err = driver.OpenDiskCache("viewc")
		if err != nil {
			driver.Logger().Warn("disk cache disabled: " + err.Error())
			cache = nil
		}
	}
	d, err := driver.New(driver.Options{Config: cfg, Jobs: jobs, Cache: cache})
	if err != nil {
		return err
	}
	paths, err := viewPaths(d, args)
	if err != nil {
		return err
	}

	var outcome compileOutcome
	if newProgressUI(mode, quiet).interactive() {
		outcome = runCompileWithUI(cmd.Context(), "compiling views", paths, d, cfg.Compile.Out)
	} else {
		outcome = compileAndWrite(cmd.Context(), d, paths, cfg.Compile.Out)
	}
	if outcome.err != nil {
		return outcome.err
	}
	res := outcome.result

	if !quiet {
		cached := 0
		for i := range res.Views {
			if res.Views[i].Cached {
				cached++
			}
		}
		ok := color.New(color.FgGreen, color.Bold)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d of %d views (%d cached) into %s\n",
			ok.Sprint("compiled"), len(res.Views)-res.Failed(), len(res.Views), cached, displayPath(cfg.Compile.Out))
	}
	if timings {
		printStageTimings(cmd.ErrOrStderr(), res)
	}
	return res.Err()
}

func displayPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	if rel, err := filepath.Rel(wd, p); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		return rel
	}
	return p
}
