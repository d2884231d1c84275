package main

import (
	"fmt"
	"os"
	"strings"
)

// uiModeEnv overrides the default of the --ui flag.
const uiModeEnv = "VIEWC_UI"

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

// readUIMode picks the progress mode: an explicit --ui flag, then
// VIEWC_UI, then auto.
func readUIMode(flag string, changed bool, env string) (uiMode, error) {
	value, source := flag, "--ui"
	if !changed && strings.TrimSpace(env) != "" {
		value, source = env, uiModeEnv
	}
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on", "true", "1":
		return uiModeOn, nil
	case "off", "false", "0":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid %s value %q (expected auto|on|off)", source, value)
	}
}

// progressUI decides how compile reports per-view progress.
type progressUI struct {
	mode  uiMode
	quiet bool
	// terminal is true when stdout is a terminal outside CI.
	terminal bool
}

func newProgressUI(mode uiMode, quiet bool) progressUI {
	return progressUI{
		mode:     mode,
		quiet:    quiet,
		terminal: isTerminal(os.Stdout) && os.Getenv("CI") == "",
	}
}

// interactive reports whether the bubbletea progress view runs; --quiet
// beats --ui=on.
func (p progressUI) interactive() bool {
	if p.quiet {
		return false
	}
	switch p.mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return p.terminal
	}
}
