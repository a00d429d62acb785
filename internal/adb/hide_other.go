//go:build !windows

// ABOUTME: No-op console window handling for non-Windows hosts
// ABOUTME: Keeps ExecRunner portable
package adb

import "os/exec"

func hideWindow(*exec.Cmd) {}
