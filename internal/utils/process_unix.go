//go:build unix

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// SetNewPG starts the child in its own process group so signals reach its whole tree.
func SetNewPG(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// IsProcessRunning probes pid with signal 0.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, nil
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return false, nil
	}
	if errors.Is(err, syscall.EPERM) {
		return true, nil
	}
	return false, err
}

/**
 * Terminate a process with SIGTERM first, then SIGKILL
 * @param {*os.Process} process - Process to stop
 * @param {time.Duration} timeout - Grace period before SIGKILL, 0 kills at once
 * @returns {error} Signal delivery failure
 * @description
 * - Signals the process group when the child leads one
 * - Polls every 100ms while waiting for the graceful exit
 */
func TerminateGracefully(process *os.Process, timeout time.Duration) error {
	pid := process.Pid
	target := pid
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
		target = -pid
	}
	if timeout > 0 {
		if err := syscall.Kill(target, syscall.SIGTERM); err == nil {
			deadline := time.Now().Add(timeout)
			for time.Now().Before(deadline) {
				if running, _ := IsProcessRunning(pid); !running {
					return nil
				}
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
	if err := syscall.Kill(target, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}

// Chown changes ownership without following symlinks, -1 keeps a field unchanged.
func Chown(path string, uid, gid int) error {
	return os.Lchown(path, uid, gid)
}
