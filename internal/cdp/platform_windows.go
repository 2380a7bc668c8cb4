//go:build windows

package cdp

import (
	"os/exec"
	"strings"
	"syscall"
)

// platformChromePath probes the well-known Chrome install locations on
// Windows, falling back to PATH lookup.
func platformChromePath() (string, error) {
	candidates := []string{
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		"chrome.exe",
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path, nil
		}
	}
	return "", errChromeNotFound
}

// detach gives the launched process its own process group via
// CREATE_NEW_PROCESS_GROUP so it is unaffected by the parent console closing.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: 0x00000200}
}

// countRunningChromeProcesses shells out to tasklist; best-effort, any
// failure is treated as zero running processes.
func countRunningChromeProcesses() int {
	out, err := exec.Command("tasklist", "/FI", "IMAGENAME eq chrome.exe").Output()
	if err != nil {
		return 0
	}
	n := 0
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(strings.ToLower(line), "chrome.exe") {
			n++
		}
	}
	return n
}
