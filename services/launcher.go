package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"mm-swarm/internal/logbridge"
	"mm-swarm/internal/logger"
	"mm-swarm/internal/models"
	"mm-swarm/internal/proc"
)

var (
	ErrConnect                = errors.New("cannot connect to the supervisor")
	ErrLaunchBus              = errors.New("cannot launch the log bus")
	ErrStartAttemptsExhausted = errors.New("start attempts exhausted")
)

// ExitCode maps a Launcher.Run error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrLaunchBus):
		return 2
	case errors.Is(err, ErrStartAttemptsExhausted):
		return 3
	default:
		return 1
	}
}

/**
 * Launcher starts the instance processes and bridges their logs
 * @property {proc.Supervisor} Supervisor - Runs the processes
 * @property {*logbridge.Bridge} Bridge - Formats the bus output
 * @property {[]models.ProcessSpec} Apps - Processes in start order
 * @property {int} MaxStartAttempts - Attempts per process, 0 retries forever
 * @property {time.Duration} StartRetryDelay - Constant pause between attempts
 */
type Launcher struct {
	Supervisor       proc.Supervisor
	Bridge           *logbridge.Bridge
	Apps             []models.ProcessSpec
	MaxStartAttempts int
	StartRetryDelay  time.Duration
}

/**
 * Supervise the processes until ctx is done
 * @param {context.Context} ctx - Stops the processes when cancelled
 * @returns {error} ErrConnect, ErrLaunchBus or ErrStartAttemptsExhausted; nil after cancellation
 * @description
 * - Every app is started independently with a constant-delay retry
 * - The first exhausted app stops everything
 */
func (l *Launcher) Run(ctx context.Context) error {
	if err := l.Supervisor.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	bus, err := l.Supervisor.LaunchBus(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLaunchBus, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var forwarder sync.WaitGroup
	forwarder.Add(1)
	go func() {
		defer forwarder.Done()
		l.forward(runCtx, bus)
	}()

	g, gctx := errgroup.WithContext(runCtx)
	for _, app := range l.Apps {
		g.Go(func() error {
			return l.startWithRetry(gctx, app)
		})
	}
	startErr := g.Wait()
	switch {
	case errors.Is(startErr, ErrStartAttemptsExhausted):
	case startErr == nil:
		<-ctx.Done()
	default:
		// cancelled while starting
		startErr = nil
	}

	l.Supervisor.StopAll()
	cancel()
	forwarder.Wait()
	return startErr
}

func (l *Launcher) forward(ctx context.Context, bus <-chan proc.LogEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus:
			if l.Bridge != nil {
				l.Bridge.Write(ev.Process, ev.Data)
			}
		}
	}
}

func (l *Launcher) startWithRetry(ctx context.Context, app models.ProcessSpec) error {
	delay := l.StartRetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	var b backoff.BackOff = backoff.NewConstantBackOff(delay)
	if l.MaxStartAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(l.MaxStartAttempts-1))
	}
	b = backoff.WithContext(b, ctx)

	attempts := 0
	operation := func() error {
		attempts++
		logger.Infof("starting %s", app.Name)
		if err := l.Supervisor.Start(ctx, app); err != nil {
			RecordProcessStartFailure(app.Name)
			if errors.Is(err, proc.ErrInvalidSpec) {
				return backoff.Permanent(err)
			}
			return err
		}
		RecordProcessStart(app.Name)
		l.recordState(app.Name)
		logger.Infof("%s started!", app.Name)
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.Errorf("%s not started: %v, retrying in %v", app.Name, err, next)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s after %d attempts: %v", ErrStartAttemptsExhausted, app.Name, attempts, err)
	}
	return nil
}

// recordState seeds the process gauges, later updates come from the supervisor callbacks.
func (l *Launcher) recordState(name string) {
	for _, p := range l.Supervisor.Processes() {
		if p.Name == name {
			RecordProcessState(p)
			return
		}
	}
}
