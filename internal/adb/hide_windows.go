//go:build windows

// ABOUTME: Suppresses the console window adb would open on Windows
// ABOUTME: Sets CREATE_NO_WINDOW on spawned commands
package adb

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
}
