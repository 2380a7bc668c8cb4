package cdp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LaunchOptions configures an auto-launched Chrome instance (spec.md §4.1
// "Auto-launch").
type LaunchOptions struct {
	Port     int
	Headless bool
}

// pollInterval and pollTimeout implement the "polls /json/version every
// 100ms for up to 10s" requirement.
const (
	pollInterval = 100 * time.Millisecond
	pollTimeout  = 10 * time.Second
)

// EnsureRunning connects to ep, auto-launching Chrome if the initial
// connect fails. Existing Chrome processes are never signalled or modified:
// a fresh CDP-enabled instance is launched beside them with an isolated
// profile, mirroring spec.md §4.1.
func EnsureRunning(ctx context.Context, ep Endpoint, opts LaunchOptions, log *logrus.Entry) error {
	if Reachable(ctx, ep) {
		return nil
	}

	warnIfNoDebugPortFlag(log)

	path, err := findChromeExecutable()
	if err != nil {
		return fmt.Errorf("cdp: locate chrome executable: %w", err)
	}

	profileSuffix := uuid.NewString()[:8]
	profileDir := fmt.Sprintf("%s/chrome-cdp-profile-%d-%s", os.TempDir(), ep.Port, profileSuffix)
	if opts.Headless {
		profileDir += "-headless"
	}
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return fmt.Errorf("cdp: create profile dir: %w", err)
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", ep.Port),
		"--no-first-run",
		"--no-default-browser-check",
		"--user-data-dir=" + profileDir,
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	// Detach: the launched browser must outlive the single invocation that
	// started it, since subsequent invocations reuse it via the tab registry.
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("cdp: start chrome: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		log.WithError(err).Debug("cdp: failed to release launched chrome process handle")
	}

	deadline := time.Now().Add(pollTimeout)
	for time.Now().Before(deadline) {
		if Reachable(ctx, ep) {
			return nil
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("cdp: chrome did not become reachable at %s within %s", ep.httpBase(), pollTimeout)
}

// warnIfNoDebugPortFlag looks for already-running Chrome processes by
// process name (countRunningChromeProcesses) and, when it finds any, logs
// that a fresh CDP-enabled instance will be launched alongside them rather
// than reused. Process command lines are not inspected, so a found process
// is not checked for the --remote-debugging-port flag.
func warnIfNoDebugPortFlag(log *logrus.Entry) {
	n := countRunningChromeProcesses()
	if n == 0 {
		return
	}
	log.WithField("running_chrome_processes", n).
		Debug("cdp: existing chrome process(es) found without a discoverable debug port; launching an isolated CDP instance")
}

// findChromeExecutable resolves the Chrome/Chromium binary path. CHROME_PATH
// overrides the OS-specific probe (spec.md §6 "Environment variables").
func findChromeExecutable() (string, error) {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p, nil
	}
	return platformChromePath()
}
