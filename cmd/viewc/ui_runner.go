package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"viewc/internal/driver"
	"viewc/internal/ui"
)

type compileOutcome struct {
	result  *driver.Result
	written []string
	err     error
}

// compileAndWrite compiles paths and writes the successful views to out.
func compileAndWrite(ctx context.Context, d *driver.Driver, paths []string, out string) compileOutcome {
	res, err := d.Compile(ctx, paths)
	if err != nil {
		return compileOutcome{result: res, err: err}
	}
	written, err := d.Write(res, out)
	return compileOutcome{result: res, written: written, err: err}
}

func runCompileWithUI(ctx context.Context, title string, files []string, d *driver.Driver, out string) compileOutcome {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan compileOutcome, 1)

	go func() {
		outcomeCh <- compileAndWrite(ctx, d.WithSink(driver.ChannelSink{Ch: events}), files, out)
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		outcome.err = uiErr
	}
	return outcome
}
