package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL = 30 * time.Second
	lockRetry      = time.Second
)

// Only the owner may release or extend a lock
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

var errLockLost = errors.New("world lock lost")

// World is the part of a world the worker drives. Follow and Lead mark
// whether this replica holds the world lock.
type World interface {
	Advance(d time.Duration) int
	Follow()
	Lead(ctx context.Context) error
}

// Options configures a Worker
type Options struct {
	WorldID  string
	WorkerID string
	Interval time.Duration
	// LockTTL bounds how long a crashed worker keeps other replicas idle
	LockTTL time.Duration
}

// Worker advances a world's virtual time in step with the wall clock. When a
// Redis client is given, only the replica holding the world lock ticks; the
// others keep their world on standby.
type Worker struct {
	id          string
	worldID     string
	world       World
	redisClient *redis.Client
	interval    time.Duration
	lockTTL     time.Duration
	log         *slog.Logger
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a new worker instance. redisClient may be nil for a single
// replica.
func New(world World, redisClient *redis.Client, opts Options, log *slog.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	workerID := opts.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}

	return &Worker{
		id:          workerID,
		worldID:     opts.WorldID,
		world:       world,
		redisClient: redisClient,
		interval:    opts.Interval,
		lockTTL:     opts.LockTTL,
		log:         log.With("worker_id", workerID),
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// ID returns the worker id used as the lock owner
func (w *Worker) ID() string {
	return w.id
}

// Start ticks the world until Stop is called
func (w *Worker) Start() error {
	defer close(w.done)
	w.log.Info("Worker starting", "world_id", w.worldID, "interval", w.interval)
	if w.interval <= 0 {
		return fmt.Errorf("invalid tick interval: %s", w.interval)
	}

	for {
		if w.redisClient != nil {
			w.world.Follow()
			if !w.waitForLock() {
				w.log.Info("Worker shutting down")
				return nil
			}
			if err := w.world.Lead(w.ctx); err != nil {
				w.log.Error("Failed to catch up on world progress", "error", err, "world_id", w.worldID)
				w.releaseWorldLock()
				if !w.sleep(lockRetry) {
					w.log.Info("Worker shutting down")
					return nil
				}
				continue
			}
		}
		err := w.run()
		if w.redisClient != nil {
			w.releaseWorldLock()
		}
		if errors.Is(err, errLockLost) {
			w.log.Warn("World lock lost, standing by", "world_id", w.worldID)
			continue
		}
		w.log.Info("Worker shutting down")
		return err
	}
}

// Stop gracefully shuts down the worker and waits for the lock release
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
	<-w.done
}

// run ticks until shutdown or, with a lock, until the lock cannot be extended
func (w *Worker) run() error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	last := w.now()
	refreshEvery := w.lockTTL / 3
	lastRefresh := last
	for {
		select {
		case <-w.ctx.Done():
			return nil
		case <-ticker.C:
			now := w.now()
			if elapsed := now.Sub(last); elapsed > 0 {
				w.world.Advance(elapsed)
			}
			last = now

			if w.redisClient != nil && now.Sub(lastRefresh) >= refreshEvery {
				ok, err := w.extendWorldLock()
				if err != nil {
					w.log.Error("Failed to extend world lock", "error", err)
				} else if !ok {
					return errLockLost
				}
				lastRefresh = now
			}
		}
	}
}

// waitForLock returns false when the worker is stopped before acquiring
func (w *Worker) waitForLock() bool {
	for {
		locked, err := w.acquireWorldLock()
		if err != nil {
			w.log.Error("Failed to acquire world lock", "error", err)
		} else if locked {
			w.log.Info("World lock acquired", "world_id", w.worldID)
			return true
		}
		if !w.sleep(lockRetry) {
			return false
		}
	}
}

// sleep returns false when the worker is stopped first
func (w *Worker) sleep(d time.Duration) bool {
	select {
	case <-w.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func lockKey(worldID string) string {
	return fmt.Sprintf("world-lock:%s", worldID)
}

// acquireWorldLock returns true if the lock was acquired, false if another
// worker holds it
func (w *Worker) acquireWorldLock() (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(w.worldID), w.id, w.lockTTL).Result()
}

func (w *Worker) extendWorldLock() (bool, error) {
	n, err := extendScript.Run(w.ctx, w.redisClient, []string{lockKey(w.worldID)}, w.id, w.lockTTL.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// releaseWorldLock runs after shutdown so it uses its own context
func (w *Worker) releaseWorldLock() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, w.redisClient, []string{lockKey(w.worldID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release world lock", "error", err, "world_id", w.worldID)
	}
}
