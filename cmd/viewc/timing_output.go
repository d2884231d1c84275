package main

import (
	"fmt"
	"io"

	"viewc/internal/driver"
	"viewc/internal/observ"
)

var timedStages = []driver.Stage{driver.StageLoad, driver.StageParse, driver.StageCompile, driver.StageFormat}

// printStageTimings sums the per-view phases of result. Views compile in
// parallel, so the sums may exceed the wall time.
func printStageTimings(out io.Writer, result *driver.Result) {
	if out == nil || result == nil {
		return
	}
	reports := make([]observ.Report, len(result.Views))
	for i := range result.Views {
		reports[i] = result.Views[i].Timing
	}
	sum := observ.Sum(reports...)
	for _, stage := range timedStages {
		p, ok := sum.Lookup(string(stage))
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(out, "%-8s %8.1f ms\n", stage, p.DurationMS); err != nil {
			panic(err)
		}
	}
	if _, err := fmt.Fprintf(out, "%-8s %8.1f ms\n", "wall", result.Timing.TotalMS); err != nil {
		panic(err)
	}
}
