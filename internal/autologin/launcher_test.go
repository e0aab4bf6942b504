package autologin

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLaunch_CooldownSuppressesRelaunch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	launches := 0
	l := NewLauncherWithClock(Command{Binary: "fake"}, 120*time.Second,
		func() time.Time { return now },
		func(ctx context.Context, cmd Command) error {
			launches++
			return nil
		})

	if !l.Launch(context.Background()) {
		t.Fatal("first Launch() = false, want true")
	}
	if launches != 1 {
		t.Fatalf("launches = %d, want 1", launches)
	}

	now = now.Add(60 * time.Second)
	if !l.Launch(context.Background()) {
		t.Error("Launch() within cooldown = false, want true (already in progress)")
	}
	if launches != 1 {
		t.Errorf("launches = %d, want 1 (cooldown must suppress relaunch)", launches)
	}

	now = now.Add(61 * time.Second) // t = 121s
	if !l.Launch(context.Background()) {
		t.Error("Launch() after cooldown = false, want true")
	}
	if launches != 2 {
		t.Errorf("launches = %d, want 2 after cooldown elapsed", launches)
	}
}

func TestLaunch_SpawnFailureReturnsFalse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLauncherWithClock(Command{Binary: "fake"}, 120*time.Second,
		func() time.Time { return now },
		func(ctx context.Context, cmd Command) error {
			return errors.New("spawn failed")
		})

	if l.Launch(context.Background()) {
		t.Error("Launch() = true, want false on spawn failure")
	}
	if l.InProgress() {
		t.Error("InProgress() = true after failed launch")
	}
}

func TestLaunch_FailedLaunchDoesNotStartCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fail := true
	launches := 0
	l := NewLauncherWithClock(Command{Binary: "fake"}, 120*time.Second,
		func() time.Time { return now },
		func(ctx context.Context, cmd Command) error {
			if fail {
				return errors.New("spawn failed")
			}
			launches++
			return nil
		})

	l.Launch(context.Background())
	fail = false

	// Immediately retrying after a failed launch must actually spawn.
	if !l.Launch(context.Background()) {
		t.Fatal("Launch() = false after spawn recovered")
	}
	if launches != 1 {
		t.Errorf("launches = %d, want 1", launches)
	}
}

func TestInProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLauncherWithClock(Command{Binary: "fake"}, 120*time.Second,
		func() time.Time { return now },
		func(ctx context.Context, cmd Command) error { return nil })

	if l.InProgress() {
		t.Error("InProgress() = true before any launch")
	}

	l.Launch(context.Background())
	if !l.InProgress() {
		t.Error("InProgress() = false right after launch")
	}

	now = now.Add(121 * time.Second)
	if l.InProgress() {
		t.Error("InProgress() = true after cooldown elapsed")
	}
}

func TestLaunchersAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	launchesA, launchesB := 0, 0
	a := NewLauncherWithClock(Command{Binary: "a"}, 120*time.Second, clock,
		func(ctx context.Context, cmd Command) error { launchesA++; return nil })
	b := NewLauncherWithClock(Command{Binary: "b"}, 120*time.Second, clock,
		func(ctx context.Context, cmd Command) error { launchesB++; return nil })

	a.Launch(context.Background())
	b.Launch(context.Background())

	if launchesA != 1 || launchesB != 1 {
		t.Errorf("launches = (%d, %d), want (1, 1) — cooldowns must be per provider", launchesA, launchesB)
	}
}
