package proc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"mm-swarm/internal/logger"
	"mm-swarm/internal/models"
	"mm-swarm/internal/utils"
)

const maxLineSize = 1024 * 1024

// LogEvent is one line written by a supervised process.
type LogEvent struct {
	Process string
	Stream  string
	Data    string
}

type processWatcher struct {
	autoRestart     bool                       // restart after an unexpected exit
	maxRestartCount int                        // 0 restarts forever
	restartDelay    time.Duration              // pause before an automatic restart
	onChanged       func(models.ProcessDetail) // called after the watcher restarted or gave up on the process
}

/**
 * ProcessInstance is one supervised child process
 * @property {string} Name - Unique process name
 * @property {string} Command - Executable
 * @property {[]string} Args - Arguments
 * @property {string} WorkDir - Working directory
 * @property {[]string} Env - Full environment of the child
 * @property {string} LogFile - stdout destination, empty sends it to the bus
 * @property {string} ErrorFile - stderr destination, empty sends it to the bus
 * @property {time.Duration} KillTimeout - Grace period before SIGKILL
 * @property {string} Status - running/exited/stopped/error
 * @property {int} RestartCount - Restarts so far
 */
type ProcessInstance struct {
	Name           string
	Command        string
	Args           []string
	WorkDir        string
	Env            []string
	LogFile        string
	ErrorFile      string
	KillTimeout    time.Duration
	Status         models.RunStatus
	RestartCount   int
	StartTime      time.Time
	LastExitTime   time.Time
	LastExitReason string
	watcher        processWatcher
	sink           func(LogEvent)
	cmd            *exec.Cmd
	mutex          sync.Mutex
}

/**
 * Create a process instance from its spec
 * @param {models.ProcessSpec} spec - What to run
 * @param {func(LogEvent)} sink - Receives output lines, nil discards them
 * @returns {*ProcessInstance} Instance in exited state, not started
 */
func NewProcessInstance(spec models.ProcessSpec, sink func(LogEvent)) *ProcessInstance {
	return &ProcessInstance{
		Name:        spec.Name,
		Command:     spec.Script,
		Args:        spec.Args,
		WorkDir:     spec.Cwd,
		Env:         buildEnv(os.Environ(), spec.Env),
		LogFile:     spec.LogFile,
		ErrorFile:   spec.ErrorFile,
		KillTimeout: spec.KillTimeout,
		Status:      models.StatusExited,
		watcher:     processWatcher{autoRestart: spec.AutoRestart},
		sink:        sink,
	}
}

// buildEnv overlays extra on base, extra keys appended in sorted order.
func buildEnv(base []string, extra map[string]string) []string {
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[k]; ok {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func (pi *ProcessInstance) SetWatcher(maxRestart int, restartDelay time.Duration, onChanged func(models.ProcessDetail)) {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	pi.watcher.onChanged = onChanged
	pi.watcher.maxRestartCount = maxRestart
	pi.watcher.restartDelay = restartDelay
}

func (pi *ProcessInstance) pid() int {
	if pi.cmd == nil || pi.cmd.Process == nil {
		return 0
	}
	return pi.cmd.Process.Pid
}

func (pi *ProcessInstance) GetDetail() models.ProcessDetail {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.detail()
}

func (pi *ProcessInstance) detail() models.ProcessDetail {
	return models.ProcessDetail{
		Name:            pi.Name,
		Command:         pi.Command,
		Args:            pi.Args,
		WorkDir:         pi.WorkDir,
		MaxRestartCount: pi.watcher.maxRestartCount,
		Pid:             pi.pid(),
		Status:          pi.Status,
		RestartCount:    pi.RestartCount,
		StartTime:       pi.StartTime,
		LastExitTime:    pi.LastExitTime,
		LastExitReason:  pi.LastExitReason,
	}
}

/**
 * Start the process
 * @returns {error} Output wiring or exec failure
 * @description
 * - No-op when already running
 * - The child leads its own process group
 * - A watcher goroutine records the exit and restarts when configured
 */
func (pi *ProcessInstance) StartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.startProcess()
}

func (pi *ProcessInstance) startProcess() error {
	if pi.Status == models.StatusRunning {
		return nil
	}
	logger.Infof("Executing command: %s %s", pi.Command, strings.Join(pi.Args, " "))

	cmd := exec.Command(pi.Command, pi.Args...)
	if pi.WorkDir != "" {
		cmd.Dir = pi.WorkDir
	}
	cmd.Env = pi.Env
	utils.SetNewPG(cmd)

	readers, closers, err := pi.wireOutput(cmd)
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		closeAll(closers)
		pi.Status = models.StatusError
		pi.LastExitReason = fmt.Sprintf("start failed: %v", err)
		logger.Errorf("Failed to start process '%s', error: %v", pi.Name, err)
		return err
	}

	pi.cmd = cmd
	pi.Status = models.StatusRunning
	pi.StartTime = time.Now()
	logger.Infof("Process '%s' started (PID: %d)", pi.Name, pi.pid())

	var wg sync.WaitGroup
	for stream, r := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pi.forward(stream, r)
		}()
	}
	go pi.watchProcess(cmd, &wg, closers)
	return nil
}

// wireOutput routes stdout and stderr to /dev/null, a file, or the bus.
func (pi *ProcessInstance) wireOutput(cmd *exec.Cmd) (map[string]io.Reader, []io.Closer, error) {
	readers := map[string]io.Reader{}
	var closers []io.Closer
	outputs := []struct {
		stream string
		file   string
		set    func(io.Writer)
		pipe   func() (io.ReadCloser, error)
	}{
		{"out", pi.LogFile, func(w io.Writer) { cmd.Stdout = w }, cmd.StdoutPipe},
		{"err", pi.ErrorFile, func(w io.Writer) { cmd.Stderr = w }, cmd.StderrPipe},
	}
	for _, o := range outputs {
		switch {
		case o.file == os.DevNull:
		case o.file != "":
			f, err := os.OpenFile(o.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, closers, err
			}
			o.set(f)
			closers = append(closers, f)
		case pi.sink != nil:
			r, err := o.pipe()
			if err != nil {
				return nil, closers, err
			}
			readers[o.stream] = r
		}
	}
	return readers, closers, nil
}

func (pi *ProcessInstance) forward(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		pi.sink(LogEvent{Process: pi.Name, Stream: stream, Data: scanner.Text()})
	}
	if err := scanner.Err(); err != nil {
		logger.Debugf("Output of '%s' closed: %v", pi.Name, err)
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

/**
 * Stop the process
 * @returns {error} Signal failure
 * @description
 * - SIGTERM to the process group, SIGKILL after KillTimeout
 * - A stopped process is never restarted by the watcher
 */
func (pi *ProcessInstance) StopProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()
	return pi.stopProcess("stopped by user")
}

func (pi *ProcessInstance) stopProcess(reason string) error {
	if pi.Status != models.StatusRunning {
		pi.Status = models.StatusStopped
		return nil
	}
	pi.Status = models.StatusStopped
	pi.LastExitTime = time.Now()
	pi.LastExitReason = reason

	pid := pi.pid()
	cmd := pi.cmd
	pi.cmd = nil
	if cmd != nil && cmd.Process != nil {
		if err := utils.TerminateGracefully(cmd.Process, pi.KillTimeout); err != nil {
			logger.Errorf("Failed to kill process '%s' (PID: %d): %v", pi.Name, pid, err)
			return err
		}
	}
	logger.Infof("Process '%s' (PID: %d) stopped", pi.Name, pid)
	return nil
}

// RestartProcess stops the process if running and starts it again, counting a restart.
func (pi *ProcessInstance) RestartProcess() error {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if err := pi.stopProcess("restarted"); err != nil {
		return err
	}
	pi.RestartCount++
	return pi.startProcess()
}

func (pi *ProcessInstance) CheckProcess() models.HealthyStatus {
	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.Status != models.StatusRunning || pi.cmd == nil {
		return models.Unavailable
	}
	running, err := utils.IsProcessRunning(pi.pid())
	if err != nil || !running {
		logger.Warnf("Process '%s' (PID: %d) isn't running", pi.Name, pi.pid())
		return models.Unavailable
	}
	return models.Healthy
}

/**
 * Wait for cmd to exit and decide what happens next
 * @param {*exec.Cmd} cmd - The started command this watcher owns
 * @param {*sync.WaitGroup} readers - Output forwarders, drained before Wait
 * @param {[]io.Closer} closers - Log files closed after exit
 * @description
 * - Exits of a command that was since stopped or replaced are ignored
 */
func (pi *ProcessInstance) watchProcess(cmd *exec.Cmd, readers *sync.WaitGroup, closers []io.Closer) {
	readers.Wait()
	err := cmd.Wait()
	closeAll(closers)

	pi.mutex.Lock()
	defer pi.mutex.Unlock()

	if pi.cmd != cmd {
		return
	}
	pid := cmd.Process.Pid
	pi.cmd = nil
	pi.LastExitTime = time.Now()
	if err != nil {
		logger.Errorf("Process '%s' (PID: %d) exited with error: %v", pi.Name, pid, err)
		pi.LastExitReason = fmt.Sprintf("exited with error: %v", err)
	} else {
		logger.Infof("Process '%s' (PID: %d) exited normally", pi.Name, pid)
		pi.LastExitReason = "exited normally"
	}
	pi.Status = models.StatusExited
	pi.autoRestart()
}

/**
 * Schedule a restart after an unexpected exit
 * @description
 * - Gives up when auto restart is off or the restart limit is reached
 * - The restart is skipped when the process was stopped or restarted meanwhile
 */
func (pi *ProcessInstance) autoRestart() {
	if !pi.watcher.autoRestart {
		pi.notify()
		return
	}
	if max := pi.watcher.maxRestartCount; max > 0 && pi.RestartCount >= max {
		logger.Warnf("Process '%s' has reached maximum restart count (%d), not restarting", pi.Name, max)
		pi.Status = models.StatusError
		pi.notify()
		return
	}

	logger.Infof("Process '%s' will restart in %v (restart: %d/%d)",
		pi.Name, pi.watcher.restartDelay, pi.RestartCount, pi.watcher.maxRestartCount)
	time.AfterFunc(pi.watcher.restartDelay, func() {
		pi.mutex.Lock()
		defer pi.mutex.Unlock()

		if pi.Status != models.StatusExited || pi.cmd != nil {
			return
		}
		pi.RestartCount++
		_ = pi.startProcess()
		pi.notify()
	})
}

func (pi *ProcessInstance) notify() {
	if pi.watcher.onChanged != nil {
		pi.watcher.onChanged(pi.detail())
	}
}
