package cli

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/quotadash/quotadash/internal/logging"
)

// newConfiguredLogger builds the stderr logger with levels and formatting
// derived from the persistent flags.
func newConfiguredLogger() *log.Logger {
	l := logging.NewLogger(os.Stderr)
	logging.Configure(l, logging.Flags{
		Verbose: verbose,
		Quiet:   quiet,
		NoColor: noColor,
		JSON:    jsonOutput,
	})
	return l
}
