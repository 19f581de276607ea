//go:build unix

package proc

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mm-swarm/internal/config"
	"mm-swarm/internal/models"
)

func newTestSupervisor(t *testing.T, maxRestarts int) *LocalSupervisor {
	t.Helper()
	s := NewLocalSupervisor(config.SupervisorConfig{
		MaxRestarts:  maxRestarts,
		RestartDelay: 10 * time.Millisecond,
		KillTimeout:  time.Second,
	})
	t.Cleanup(s.StopAll)
	require.NoError(t, s.Connect(context.Background()))
	return s
}

func detailOf(s *LocalSupervisor, name string) models.ProcessDetail {
	for _, d := range s.Processes() {
		if d.Name == name {
			return d
		}
	}
	return models.ProcessDetail{}
}

func collect(t *testing.T, bus <-chan LogEvent, n int) []LogEvent {
	t.Helper()
	var events []LogEvent
	timeout := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case ev := <-bus:
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("got %d of %d events: %v", len(events), n, events)
		}
	}
	return events
}

func TestLocalSupervisor_RequiresConnect(t *testing.T) {
	s := NewLocalSupervisor(config.SupervisorConfig{})
	_, err := s.LaunchBus(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	err = s.Start(context.Background(), models.ProcessSpec{Name: "x", Script: "true"})
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, s.Connect(context.Background()))
	_, err = s.LaunchBus(context.Background())
	require.NoError(t, err)
	_, err = s.LaunchBus(context.Background())
	assert.ErrorIs(t, err, ErrBusLaunched)

	s.StopAll()
	assert.ErrorIs(t, s.Connect(context.Background()), ErrSupervisorClose)
}

func TestLocalSupervisor_ForwardsOutputToBus(t *testing.T) {
	s := newTestSupervisor(t, 0)
	bus, err := s.LaunchBus(context.Background())
	require.NoError(t, err)

	err = s.Start(context.Background(), models.ProcessSpec{
		Name:   "echo",
		Script: "/bin/sh",
		Args:   []string{"-c", `echo "hello $GREETING"; echo oops >&2`},
		Env:    map[string]string{"GREETING": "mirror"},
	})
	require.NoError(t, err)

	events := collect(t, bus, 2)
	sort.Slice(events, func(i, j int) bool { return events[i].Stream > events[j].Stream })
	assert.Equal(t, LogEvent{Process: "echo", Stream: "out", Data: "hello mirror"}, events[0])
	assert.Equal(t, LogEvent{Process: "echo", Stream: "err", Data: "oops"}, events[1])

	assert.Eventually(t, func() bool {
		return detailOf(s, "echo").Status == models.StatusExited
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "exited normally", detailOf(s, "echo").LastExitReason)
}

func TestLocalSupervisor_DevNullOutputIsDiscarded(t *testing.T) {
	s := newTestSupervisor(t, 0)
	bus, err := s.LaunchBus(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background(), models.ProcessSpec{
		Name:      "quiet",
		Script:    "/bin/sh",
		Args:      []string{"-c", "echo hidden; echo hidden >&2"},
		LogFile:   "/dev/null",
		ErrorFile: "/dev/null",
	}))
	assert.Eventually(t, func() bool {
		return detailOf(s, "quiet").Status == models.StatusExited
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, bus, 0)
}

func TestLocalSupervisor_AutoRestartStopsAtLimit(t *testing.T) {
	s := newTestSupervisor(t, 2)
	var mu sync.Mutex
	var changes []models.ProcessDetail
	s.SetOnChanged(func(d models.ProcessDetail) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, d)
	})

	require.NoError(t, s.Start(context.Background(), models.ProcessSpec{
		Name:        "crash",
		Script:      "/bin/sh",
		Args:        []string{"-c", "exit 3"},
		AutoRestart: true,
	}))

	assert.Eventually(t, func() bool {
		d := detailOf(s, "crash")
		return d.Status == models.StatusError && d.RestartCount == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, detailOf(s, "crash").LastExitReason, "exit status 3")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, changes)
	assert.Equal(t, models.StatusError, changes[len(changes)-1].Status)
}

func TestLocalSupervisor_NoAutoRestart(t *testing.T) {
	s := newTestSupervisor(t, 0)
	require.NoError(t, s.Start(context.Background(), models.ProcessSpec{
		Name:   "once",
		Script: "/bin/sh",
		Args:   []string{"-c", "exit 0"},
	}))
	assert.Eventually(t, func() bool {
		return detailOf(s, "once").Status == models.StatusExited
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, detailOf(s, "once").RestartCount)
}

func TestLocalSupervisor_RestartAndStop(t *testing.T) {
	s := newTestSupervisor(t, 0)
	require.NoError(t, s.Start(context.Background(), models.ProcessSpec{
		Name:        "sleeper",
		Script:      "sleep",
		Args:        []string{"30"},
		AutoRestart: true,
	}))
	first := detailOf(s, "sleeper")
	require.Equal(t, models.StatusRunning, first.Status)

	require.NoError(t, s.Restart("sleeper"))
	second := detailOf(s, "sleeper")
	assert.Equal(t, models.StatusRunning, second.Status)
	assert.Equal(t, 1, second.RestartCount)
	assert.NotEqual(t, first.Pid, second.Pid)

	assert.ErrorIs(t, s.Restart("missing"), ErrUnknownProcess)

	s.StopAll()
	stopped := detailOf(s, "sleeper")
	assert.Equal(t, models.StatusStopped, stopped.Status)
	assert.Equal(t, "stopped by user", stopped.LastExitReason)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, models.StatusStopped, detailOf(s, "sleeper").Status)
}

func TestLocalSupervisor_StartFailure(t *testing.T) {
	s := newTestSupervisor(t, 0)
	err := s.Start(context.Background(), models.ProcessSpec{Name: "ghost", Script: "/nonexistent/binary"})
	require.Error(t, err)
	d := detailOf(s, "ghost")
	assert.Equal(t, models.StatusError, d.Status)
	assert.Contains(t, d.LastExitReason, "start failed")

	assert.ErrorIs(t, s.Start(context.Background(), models.ProcessSpec{Name: "nameless"}), ErrInvalidSpec)
}

func TestBuildEnv(t *testing.T) {
	env := buildEnv([]string{"A=1", "B=2", "PATH=/bin"}, map[string]string{"B": "3", "C": "4"})
	assert.Equal(t, []string{"A=1", "PATH=/bin", "B=3", "C=4"}, env)
}
