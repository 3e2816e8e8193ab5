package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.unit = time.Millisecond
	return s
}

func TestStartup_DependencyOrder(t *testing.T) {
	var started, stopped []string
	dep := func(name string, requires ...string) Func {
		return Func{
			Name:      name,
			Requires:  requires,
			StartFunc: func(context.Context) error { started = append(started, name); return nil },
			StopFunc:  func(context.Context) error { stopped = append(stopped, name); return nil },
		}
	}

	s := testStartup(1)
	s.AddDependency(dep("publisher", "registry"))
	s.AddDependency(dep("cache"))
	s.AddDependency(dep("registry", "database"))
	s.AddDependency(dep("database"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "registry", "publisher", "cache"}, started)
	assert.Equal(t, StatusStarted, s.Status("publisher"))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"cache", "publisher", "registry", "database"}, stopped)
	assert.Equal(t, StatusStopped, s.Status("database"))
}

func TestStartup_RetriesUntilDependencyStarts(t *testing.T) {
	calls := 0
	cacheStarts := 0
	s := testStartup(4)
	s.AddDependency(Func{Name: "cache", StartFunc: func(context.Context) error { cacheStarts++; return nil }})
	s.AddDependency(Func{Name: "database", StartFunc: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, cacheStarts)
}

func TestStartup_GivesUp(t *testing.T) {
	calls := 0
	s := testStartup(3)
	s.AddDependency(Func{Name: "redis", StartFunc: func(context.Context) error {
		calls++
		return errors.New("connection refused")
	}})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "startup failed after 3 attempts")
	assert.Contains(t, err.Error(), "dependency 'redis': connection refused")
	assert.Equal(t, StatusFailed, s.Status("redis"))
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	noop := func(context.Context) error { return nil }

	s := testStartup(1)
	s.AddDependency(Func{Name: "registry", Requires: []string{"database"}, StartFunc: noop})
	assert.ErrorContains(t, s.Start(context.Background()), "unknown startup dependency 'database'")

	s = testStartup(1)
	s.AddDependency(Func{Name: "a", Requires: []string{"b"}, StartFunc: noop})
	s.AddDependency(Func{Name: "b", Requires: []string{"a"}, StartFunc: noop})
	assert.ErrorContains(t, s.Start(context.Background()), "cycle")
}

func TestStartup_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := testStartup(5)
	s.unit = time.Hour
	s.AddDependency(Func{Name: "kafka", StartFunc: func(context.Context) error {
		cancel()
		return errors.New("no brokers")
	}})

	assert.ErrorIs(t, s.Start(ctx), context.Canceled)
}
