//go:build !windows

package cdp

import (
	"os/exec"
	"strings"
	"syscall"
)

// platformChromePath probes the well-known Chrome/Chromium install
// locations on Linux and macOS, in the order Selenium's ChromeDriver wiki
// page and karma-chrome-launcher's probe list use (spec.md §1 treats this as
// an external platform-probe function, out of scope for detailed design).
func platformChromePath() (string, error) {
	candidates := []string{
		"google-chrome-stable",
		"google-chrome",
		"chromium-browser",
		"chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", errChromeNotFound
}

// detach puts the launched process in its own process group so it survives
// the parent CLI invocation exiting.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// countRunningChromeProcesses does a best-effort scan of `ps` output for
// chrome/chromium processes. Best-effort: any failure is treated as zero.
func countRunningChromeProcesses() int {
	out, err := exec.Command("ps", "-A", "-o", "comm=").Output()
	if err != nil {
		return 0
	}
	n := 0
	for _, line := range strings.Split(string(out), "\n") {
		l := strings.ToLower(strings.TrimSpace(line))
		if strings.Contains(l, "chrome") {
			n++
		}
	}
	return n
}
