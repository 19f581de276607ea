package models

import "time"

type RunStatus string

const (
	// running under supervision
	StatusRunning RunStatus = "running"
	// exited on its own, the watcher restarts it after the restart delay
	StatusExited RunStatus = "exited"
	// failed to start or exhausted its restarts
	StatusError RunStatus = "error"
	// stopped on request, never restarted automatically
	StatusStopped RunStatus = "stopped"
)

/**
 * ProcessSpec describes one supervised application
 * @property {string} name - Unique name, also the log bridge column
 * @property {string} script - Executable to run
 * @property {[]string} args - Arguments passed to script
 * @property {string} cwd - Working directory
 * @property {map[string]string} env - Extra environment merged over the parent one
 * @property {bool} autoRestart - Restart after an unexpected exit
 * @property {time.Duration} killTimeout - Grace period between SIGTERM and SIGKILL
 * @property {string} user - Informational run-as user
 * @property {string} logFile - Where stdout goes instead of the bus, "/dev/null" discards it
 * @property {string} errorFile - Same as logFile for stderr
 * @property {[]string} watch - Paths whose change should trigger a restart
 */
type ProcessSpec struct {
	Name        string            `json:"name" mapstructure:"name"`
	Script      string            `json:"script" mapstructure:"script"`
	Args        []string          `json:"args" mapstructure:"args"`
	Cwd         string            `json:"cwd,omitempty" mapstructure:"cwd"`
	Env         map[string]string `json:"env,omitempty" mapstructure:"env"`
	AutoRestart bool              `json:"autoRestart" mapstructure:"auto_restart"`
	KillTimeout time.Duration     `json:"killTimeout" mapstructure:"kill_timeout"`
	User        string            `json:"user,omitempty" mapstructure:"user"`
	LogFile     string            `json:"logFile,omitempty" mapstructure:"log_file"`
	ErrorFile   string            `json:"errorFile,omitempty" mapstructure:"error_file"`
	Watch       []string          `json:"watch,omitempty" mapstructure:"watch"`
}

type ProcessDetail struct {
	Name            string    `json:"name"`
	Command         string    `json:"command"`
	Args            []string  `json:"args"`
	WorkDir         string    `json:"workDir"`
	MaxRestartCount int       `json:"maxRestartCount"`
	Pid             int       `json:"pid"`
	Status          RunStatus `json:"status"`
	RestartCount    int       `json:"restartCount"`
	StartTime       time.Time `json:"startTime"`
	LastExitTime    time.Time `json:"lastExitTime"`
	LastExitReason  string    `json:"lastExitReason"`
}
