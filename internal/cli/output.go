package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"
)

// outWriter is swapped for a buffer in tests.
var outWriter io.Writer = os.Stdout

func out(format string, args ...any) {
	_, _ = fmt.Fprintf(outWriter, format, args...)
}

func outln(args ...any) {
	_, _ = fmt.Fprintln(outWriter, args...)
}

// terminalWidth returns the current terminal width, defaulting to 80 when
// stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
