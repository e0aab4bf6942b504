// Package autologin launches a provider's external re-authentication flow and
// rate-limits relaunches. A launch is fire-and-forget: completion is observed
// on a later poll cycle when the token resolver finds fresh credentials.
package autologin

import (
	"context"
	"sync"
	"time"
)

// DefaultCooldown is the minimum interval between login-flow launches for a
// provider. It is a launch-rate limiter, not a completion confirmation: a
// launched-but-unfinished flow blocks relaunches for the full window.
const DefaultCooldown = 120 * time.Second

// Command describes the external re-authentication invocation for a provider.
type Command struct {
	// Binary and Args form the companion CLI login invocation.
	Binary string
	Args   []string
	// Headless runs the command detached in the background: a lightweight
	// authenticated no-op whose side effect is the companion tool silently
	// refreshing its own tokens. When false, the command is run in a newly
	// spawned terminal window so the user can complete an interactive flow.
	Headless bool
}

// SpawnFunc starts the external flow without waiting for it to finish.
type SpawnFunc func(ctx context.Context, cmd Command) error

// Launcher owns one provider's login-flow state. Each provider instance gets
// its own Launcher so cooldowns are independent and tests can inject clocks.
type Launcher struct {
	mu         sync.Mutex
	cmd        Command
	cooldown   time.Duration
	now        func() time.Time
	spawn      SpawnFunc
	lastLaunch time.Time
}

// NewLauncher creates a Launcher for the given command with the default
// cooldown and the OS spawner.
func NewLauncher(cmd Command) *Launcher {
	return &Launcher{
		cmd:      cmd,
		cooldown: DefaultCooldown,
		now:      time.Now,
		spawn:    Spawn,
	}
}

// NewLauncherWithClock creates a Launcher with an explicit cooldown, clock,
// and spawner. Tests use this to avoid real process launches.
func NewLauncherWithClock(cmd Command, cooldown time.Duration, now func() time.Time, spawn SpawnFunc) *Launcher {
	if now == nil {
		now = time.Now
	}
	return &Launcher{cmd: cmd, cooldown: cooldown, now: now, spawn: spawn}
}

// Launch starts the re-authentication flow. Within the cooldown window it
// returns true without relaunching: the earlier flow is assumed to still be
// in progress, and rapid poll cycles must not spawn a login storm. A spawn
// failure returns false; nothing propagates as a fault.
func (l *Launcher) Launch(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.withinCooldown() {
		return true
	}

	if l.spawn == nil {
		return false
	}
	if err := l.spawn(ctx, l.cmd); err != nil {
		return false
	}

	// Recorded at launch, not completion. Launch never blocks on the flow.
	l.lastLaunch = l.now()
	return true
}

// InProgress reports whether a launched flow is believed to still be running,
// i.e. the cooldown window since the last launch has not elapsed.
func (l *Launcher) InProgress() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withinCooldown()
}

func (l *Launcher) withinCooldown() bool {
	return !l.lastLaunch.IsZero() && l.now().Sub(l.lastLaunch) < l.cooldown
}
