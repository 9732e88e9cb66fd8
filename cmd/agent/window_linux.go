//go:build linux

package main

import (
	"bytes"
	"os/exec"
	"strings"
)

// getActiveWindowTitle asks xdotool for the focused window; "" when it is
// missing or there is no X session.
func getActiveWindowTitle() string {
	cmd := exec.Command("xdotool", "getwindowfocus", "getwindowname")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(out.String())
}
