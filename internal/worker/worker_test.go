package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWorld struct {
	mu      sync.Mutex
	total   time.Duration
	advance int
	follows int
	leads   int
	leadErr error
	leading bool
}

func (c *countingWorld) Follow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.follows++
	c.leading = false
}

func (c *countingWorld) Lead(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leads++
	if c.leadErr != nil {
		return c.leadErr
	}
	c.leading = true
	return nil
}

func (c *countingWorld) state() (follows, leads int, leading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.follows, c.leads, c.leading
}

func (c *countingWorld) Advance(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += d
	c.advance++
	return 0
}

func (c *countingWorld) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advance
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestWorker_TicksWithoutRedis(t *testing.T) {
	world := &countingWorld{}
	w := New(world, nil, Options{WorldID: "garden", Interval: 5 * time.Millisecond}, testLogger())
	assert.Contains(t, w.ID(), "worker-")

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start() }()

	assert.Eventually(t, func() bool { return world.calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	w.Stop()
	require.NoError(t, <-errCh)
}

func TestWorker_RejectsZeroInterval(t *testing.T) {
	w := New(&countingWorld{}, nil, Options{WorldID: "garden"}, testLogger())
	assert.Error(t, w.Start())
}

func TestWorker_HoldsAndReleasesLock(t *testing.T) {
	mr, client := setupRedis(t)
	world := &countingWorld{}
	w := New(world, client, Options{WorldID: "garden", WorkerID: "worker-a", Interval: 5 * time.Millisecond}, testLogger())

	go func() { _ = w.Start() }()
	assert.Eventually(t, func() bool { return world.calls() >= 1 }, 2*time.Second, 5*time.Millisecond)

	owner, err := mr.Get("world-lock:garden")
	require.NoError(t, err)
	assert.Equal(t, "worker-a", owner)
	_, leads, leading := world.state()
	assert.Equal(t, 1, leads)
	assert.True(t, leading)

	w.Stop()
	assert.False(t, mr.Exists("world-lock:garden"))
}

func TestWorker_StandsByWhileLocked(t *testing.T) {
	mr, client := setupRedis(t)
	require.NoError(t, mr.Set("world-lock:garden", "worker-other"))

	world := &countingWorld{}
	w := New(world, client, Options{WorldID: "garden", WorkerID: "worker-b", Interval: 5 * time.Millisecond}, testLogger())
	go func() { _ = w.Start() }()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, world.calls())
	follows, leads, leading := world.state()
	assert.Equal(t, 1, follows)
	assert.Zero(t, leads)
	assert.False(t, leading)

	w.Stop()
	owner, err := mr.Get("world-lock:garden")
	require.NoError(t, err)
	assert.Equal(t, "worker-other", owner, "release must not delete another owner's lock")
}

func TestWorker_ReleasesLockWhenCatchUpFails(t *testing.T) {
	mr, client := setupRedis(t)
	world := &countingWorld{leadErr: errors.New("store unavailable")}
	w := New(world, client, Options{WorldID: "garden", WorkerID: "worker-c", Interval: 5 * time.Millisecond}, testLogger())
	go func() { _ = w.Start() }()

	assert.Eventually(t, func() bool {
		_, leads, _ := world.state()
		return leads >= 1 && !mr.Exists("world-lock:garden")
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, world.calls(), "a world that did not catch up is never ticked")

	w.Stop()
}

func TestWorker_LockOwnership(t *testing.T) {
	_, client := setupRedis(t)
	a := New(&countingWorld{}, client, Options{WorldID: "garden", WorkerID: "a"}, testLogger())
	b := New(&countingWorld{}, client, Options{WorldID: "garden", WorkerID: "b"}, testLogger())

	ok, err := a.acquireWorldLock()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.acquireWorldLock()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = b.extendWorldLock()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.extendWorldLock()
	require.NoError(t, err)
	assert.True(t, ok)

	b.releaseWorldLock()
	ok, err = b.acquireWorldLock()
	require.NoError(t, err)
	assert.False(t, ok)

	a.releaseWorldLock()
	ok, err = b.acquireWorldLock()
	require.NoError(t, err)
	assert.True(t, ok)
}
