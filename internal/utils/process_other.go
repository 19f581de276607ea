//go:build !unix

package utils

import (
	"os"
	"os/exec"
	"time"
)

// SetNewPG is a no-op where process groups are not available.
func SetNewPG(cmd *exec.Cmd) {}

func IsProcessRunning(pid int) (bool, error) {
	_, err := os.FindProcess(pid)
	return err == nil, nil
}

func TerminateGracefully(process *os.Process, timeout time.Duration) error {
	return process.Kill()
}

// Chown is not supported on this platform.
func Chown(path string, uid, gid int) error {
	return nil
}
