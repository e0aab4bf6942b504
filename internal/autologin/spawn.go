package autologin

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
)

// Spawn starts the external login flow and returns as soon as the process is
// running. Headless commands run detached with discarded output; interactive
// commands are wrapped in a new terminal window so the user can drive them.
func Spawn(ctx context.Context, cmd Command) error {
	binPath, err := exec.LookPath(cmd.Binary)
	if err != nil {
		return err
	}

	if cmd.Headless {
		return startDetached(exec.Command(binPath, cmd.Args...))
	}
	return spawnTerminal(ctx, binPath, cmd.Args)
}

// spawnTerminal opens a new terminal window running the login command.
func spawnTerminal(ctx context.Context, binPath string, args []string) error {
	line := shellLine(binPath, args)

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`tell application "Terminal" to do script %q`, line)
		osa := exec.Command("osascript", "-e", script, "-e", `tell application "Terminal" to activate`)
		return startDetached(osa)
	case "linux":
		for _, term := range []string{"x-terminal-emulator", "gnome-terminal", "konsole", "xterm"} {
			termPath, err := exec.LookPath(term)
			if err != nil {
				continue
			}
			tcmd := exec.Command(termPath, "-e", "sh", "-c", line)
			return startDetached(tcmd)
		}
		return fmt.Errorf("no terminal emulator found")
	default:
		return fmt.Errorf("interactive login not supported on %s", runtime.GOOS)
	}
}

// startDetached starts the command without waiting for it. A goroutine reaps
// the process so it doesn't linger as a zombie.
func startDetached(cmd *exec.Cmd) error {
	cmd.Stdin = nil
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

func shellLine(binPath string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binPath)
	for _, a := range args {
		if strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
