package main

import (
	"fmt"
	"io"

	"github.com/casualjim/parley"
	"github.com/fatih/color"
)

// printReport writes one line per outcome and returns the number of failures.
func printReport(w io.Writer, kind parley.FanoutKind, outcomes []outcome) int {
	fmt.Fprintf(w, "%s %s\n", color.CyanString("fanout:"), kind)

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", color.RedString("FAIL"), o.Name, o.Err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", color.GreenString("ok  "), o.Name, color.YellowString(o.Detail))
	}
	return failed
}
