//go:build darwin

package main

import (
	"bytes"
	"os/exec"
	"strings"
)

const frontWindowScript = `tell application "System Events" to get name of window 1 of (first application process whose frontmost is true)`

func getActiveWindowTitle() string {
	cmd := exec.Command("osascript", "-e", frontWindowScript)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(out.String())
}
