package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
)

// StartSpinner shows a progress spinner with message while a slow
// operation runs. The returned cleanup stops it and prints the final
// message, if one was set. Non-interactive sessions get no animation.
func StartSpinner(message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Color("cyan")

	interactive := Interactive()
	if interactive {
		s.Start()
	}

	cleanup := func() {
		if s.FinalMSG != "" && !strings.HasSuffix(s.FinalMSG, "\n") {
			s.FinalMSG += "\n"
		}
		if interactive {
			s.Stop()
		} else if s.FinalMSG != "" {
			fmt.Print(s.FinalMSG)
		}
	}
	return s, cleanup
}
