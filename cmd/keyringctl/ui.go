package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// formatter applies one color, or plain decoration when color is disabled.
type formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f formatter) Sprint(a ...interface{}) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	successText   = formatter{color.New(color.FgGreen), "", ""}
	errorText     = formatter{color.New(color.FgRed), "", ""}
	warningText   = formatter{color.New(color.FgYellow), "", ""}
	highlightText = formatter{color.New(color.FgCyan), "'", "'"}
	mutedText     = formatter{color.New(color.FgHiBlack), "(", ")"}
)

// startSpinner shows message on stderr until the returned stop func is called.
// Nothing is drawn when quiet is set.
func startSpinner(message string, quiet bool) (stop func()) {
	if quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	if !noColor() {
		_ = s.Color("cyan")
	}
	s.Start()
	return s.Stop
}
