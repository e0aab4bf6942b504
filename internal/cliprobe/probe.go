// Package cliprobe inspects a companion CLI's login/session state by running
// it and pattern-matching the captured output. Everything here is best-effort:
// a missing binary, a timeout, or unmatched output all surface as absent, and
// the result only ever annotates a status line.
package cliprobe

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
)

// DefaultTimeout bounds a probe when Spec.Timeout is zero. Providers with
// slow-starting CLIs raise it up to 15s.
const DefaultTimeout = 5 * time.Second

// Spec describes one provider's probe: which binary to run and how to pick
// the status out of its output.
type Spec struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	// Pattern is matched against the ANSI-stripped combined stdout+stderr.
	// The first capture group is returned when present, otherwise the full
	// match.
	Pattern *regexp.Regexp
}

// Probe runs the companion CLI and extracts a status string. The second
// return value is false when the binary is absent, execution fails to yield
// matching output, or the pattern is nil.
func Probe(ctx context.Context, spec Spec) (string, bool) {
	if spec.Pattern == nil {
		return "", false
	}

	binPath, err := exec.LookPath(spec.Binary)
	if err != nil {
		return "", false
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(tctx, binPath, spec.Args...)
	cmd.Stdin = nil
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	// A non-zero exit can still carry useful output ("not logged in"
	// banners commonly exit 1), so the error itself is ignored and the
	// captured text decides.
	_ = cmd.Run()

	return Extract(buf.String(), spec.Pattern)
}

// Extract strips ANSI escape sequences from raw CLI output and applies the
// pattern. Split out from Probe so it can be tested against canned output.
func Extract(raw string, pattern *regexp.Regexp) (string, bool) {
	clean := ansi.Strip(raw)
	m := pattern.FindStringSubmatch(clean)
	if m == nil {
		return "", false
	}
	if len(m) > 1 && m[1] != "" {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(m[0]), true
}
