// Package main implements the viewc CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"viewc/internal/diag"
	"viewc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:               "viewc",
	Short:             "Markup view compiler",
	Long:              `viewc compiles resolved markup views into Go control builders`,
	PersistentPreRunE: setupLogging,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// main registers the subcommands and persistent flags and runs the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Number

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console|json)")
	rootCmd.PersistentFlags().String("config", "", "path to viewc.toml (default: search upwards)")

	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError prints every joined error on its own line, prefixed with the
// severity of the diagnostic.
func printError(out io.Writer, err error) {
	errLabel := color.New(color.FgRed, color.Bold)
	warnLabel := color.New(color.FgYellow, color.Bold)
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var de *diag.Error
		if errors.As(e, &de) && !de.Severity.IsError() {
			fmt.Fprintf(out, "%s %v\n", warnLabel.Sprint(strings.ToLower(de.Severity.String())+":"), e)
			continue
		}
		fmt.Fprintf(out, "%s %v\n", errLabel.Sprint("error:"), e)
	}
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
