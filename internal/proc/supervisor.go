package proc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mm-swarm/internal/config"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/models"
)

var (
	ErrNotConnected    = errors.New("supervisor not connected")
	ErrBusLaunched     = errors.New("log bus already launched")
	ErrUnknownProcess  = errors.New("unknown process")
	ErrInvalidSpec     = errors.New("invalid process spec")
	ErrSupervisorClose = errors.New("supervisor closed")
)

const busSize = 1024

// Supervisor starts and keeps named processes alive and streams their output.
type Supervisor interface {
	Connect(ctx context.Context) error
	LaunchBus(ctx context.Context) (<-chan LogEvent, error)
	Start(ctx context.Context, spec models.ProcessSpec) error
	Processes() []models.ProcessDetail
	Restart(name string) error
	StopAll()
}

/**
 * LocalSupervisor runs processes as children of the current process
 * @property {time.Duration} restartDelay - Pause before an automatic restart
 * @property {int} maxRestarts - Automatic restarts per process, 0 unlimited
 * @property {time.Duration} killTimeout - Grace period used when a spec has none
 * @property {time.Duration} WatchInterval - Poll period of watched files
 */
type LocalSupervisor struct {
	restartDelay  time.Duration
	maxRestarts   int
	killTimeout   time.Duration
	WatchInterval time.Duration

	mutex     sync.Mutex
	connected bool
	bus       chan LogEvent
	done      chan struct{}
	closeOnce sync.Once
	processes map[string]*ProcessInstance
	order     []string
	onChanged func(models.ProcessDetail)
}

func NewLocalSupervisor(cfg config.SupervisorConfig) *LocalSupervisor {
	return &LocalSupervisor{
		restartDelay:  cfg.RestartDelay,
		maxRestarts:   cfg.MaxRestarts,
		killTimeout:   cfg.KillTimeout,
		WatchInterval: 2 * time.Second,
		done:          make(chan struct{}),
		processes:     map[string]*ProcessInstance{},
	}
}

// SetOnChanged registers fn for process state changes made by the watchers.
func (s *LocalSupervisor) SetOnChanged(fn func(models.ProcessDetail)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.onChanged = fn
}

// Connect prepares the supervisor; it fails once the supervisor was stopped.
func (s *LocalSupervisor) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrSupervisorClose
	default:
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.connected = true
	return nil
}

/**
 * Open the log bus
 * @param {context.Context} ctx - Checked before opening
 * @returns {<-chan LogEvent} Lines of every process started afterwards
 * @returns {error} ErrNotConnected or ErrBusLaunched
 * @description
 * - The channel is never closed, readers stop on their own context
 * - Producers block while the bus is full, lines are not dropped
 */
func (s *LocalSupervisor) LaunchBus(ctx context.Context) (<-chan LogEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.connected {
		return nil, ErrNotConnected
	}
	if s.bus != nil {
		return nil, ErrBusLaunched
	}
	s.bus = make(chan LogEvent, busSize)
	return s.bus, nil
}

func (s *LocalSupervisor) publish(ev LogEvent) {
	s.mutex.Lock()
	bus := s.bus
	s.mutex.Unlock()
	if bus == nil {
		return
	}
	select {
	case bus <- ev:
	case <-s.done:
	}
}

/**
 * Start a process, or start it again when it is registered but not running
 * @param {context.Context} ctx - Checked before starting
 * @param {models.ProcessSpec} spec - Process to start
 * @returns {error} ErrNotConnected, ErrInvalidSpec or the exec failure
 */
func (s *LocalSupervisor) Start(ctx context.Context, spec models.ProcessSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if spec.Name == "" || spec.Script == "" {
		return fmt.Errorf("%w: name and script are required", ErrInvalidSpec)
	}

	s.mutex.Lock()
	if !s.connected {
		s.mutex.Unlock()
		return ErrNotConnected
	}
	pi, ok := s.processes[spec.Name]
	if !ok {
		if spec.KillTimeout <= 0 {
			spec.KillTimeout = s.killTimeout
		}
		pi = NewProcessInstance(spec, s.publish)
		pi.SetWatcher(s.maxRestarts, s.restartDelay, s.changed)
		s.processes[spec.Name] = pi
		s.order = append(s.order, spec.Name)
		if len(spec.Watch) > 0 {
			go s.watchFiles(spec.Name, resolveWatch(spec.Cwd, spec.Watch))
		}
	}
	s.mutex.Unlock()

	return pi.StartProcess()
}

func (s *LocalSupervisor) changed(detail models.ProcessDetail) {
	s.mutex.Lock()
	fn := s.onChanged
	s.mutex.Unlock()
	if fn != nil {
		fn(detail)
	}
}

// Processes lists every registered process in start order.
func (s *LocalSupervisor) Processes() []models.ProcessDetail {
	s.mutex.Lock()
	instances := make([]*ProcessInstance, 0, len(s.order))
	for _, name := range s.order {
		instances = append(instances, s.processes[name])
	}
	s.mutex.Unlock()

	details := make([]models.ProcessDetail, 0, len(instances))
	for _, pi := range instances {
		details = append(details, pi.GetDetail())
	}
	return details
}

// Restart stops and starts the named process.
func (s *LocalSupervisor) Restart(name string) error {
	s.mutex.Lock()
	pi, ok := s.processes[name]
	s.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProcess, name)
	}
	if err := pi.RestartProcess(); err != nil {
		return err
	}
	s.changed(pi.GetDetail())
	return nil
}

// StopAll stops every process in reverse start order and releases blocked producers.
func (s *LocalSupervisor) StopAll() {
	s.mutex.Lock()
	names := append([]string(nil), s.order...)
	s.mutex.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		s.mutex.Lock()
		pi := s.processes[names[i]]
		s.mutex.Unlock()
		if err := pi.StopProcess(); err != nil {
			logger.Warnf("Stopping '%s': %v", names[i], err)
		}
	}
	s.closeOnce.Do(func() { close(s.done) })
}

func resolveWatch(cwd string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) && cwd != "" {
			p = filepath.Join(cwd, p)
		}
		out = append(out, p)
	}
	return out
}

func modTimes(paths []string) map[string]time.Time {
	out := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			out[p] = info.ModTime()
		}
	}
	return out
}

// watchFiles restarts the process whenever a watched file changes.
func (s *LocalSupervisor) watchFiles(name string, paths []string) {
	interval := s.WatchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := modTimes(paths)
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}
		current := modTimes(paths)
		if equalTimes(last, current) {
			continue
		}
		last = current
		logger.Infof("Change detected in watched files of '%s', restarting", name)
		if err := s.Restart(name); err != nil {
			logger.Warnf("Restart of '%s' failed: %v", name, err)
		}
	}
}

func equalTimes(a, b map[string]time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || !w.Equal(v) {
			return false
		}
	}
	return true
}
