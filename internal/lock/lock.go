// Package lock provides a Redis-backed distributed lock used to gate a
// single scheduler instance's Suspended -> Running transition across a
// multi-instance deployment, so only one process's manager ever resumes
// firing jobs for a given database_name at a time.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedLocker provides distributed locking using Redis.
type DistributedLocker struct {
	client   *redis.Client
	workerID string
}

// NewDistributedLocker creates a new distributed locker.
func NewDistributedLocker(client *redis.Client, workerID string) *DistributedLocker {
	return &DistributedLocker{
		client:   client,
		workerID: workerID,
	}
}

// AcquireLock attempts to acquire a lock with the given key.
func (l *DistributedLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lockKey := fmt.Sprintf("lock:%s", key)

	result, err := l.client.SetNX(ctx, lockKey, l.workerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return result, nil
}

// ReleaseLock releases a lock if held by this worker.
func (l *DistributedLocker) ReleaseLock(ctx context.Context, key string) error {
	lockKey := fmt.Sprintf("lock:%s", key)

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	_, err := script.Run(ctx, l.client, []string{lockKey}, l.workerID).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}

// RefreshLock extends the TTL of a held lock. It reports held=false,
// err=nil when the key exists but is owned by a different worker (or
// has expired), so callers can tell "lost the lock" apart from "Redis
// call failed" instead of treating both as success.
func (l *DistributedLocker) RefreshLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lockKey := fmt.Sprintf("lock:%s", key)

	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)

	result, err := script.Run(ctx, l.client, []string{lockKey}, l.workerID, ttl.Milliseconds()).Result()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("failed to refresh lock: %w", err)
	}

	held, ok := result.(int64)
	return ok && held != 0, nil
}

// IsLockHeld checks if a lock is currently held by this worker.
func (l *DistributedLocker) IsLockHeld(ctx context.Context, key string) (bool, error) {
	lockKey := fmt.Sprintf("lock:%s", key)

	value, err := l.client.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}

	return value == l.workerID, nil
}

// WaitForLock waits until a lock can be acquired or context is cancelled.
func (l *DistributedLocker) WaitForLock(ctx context.Context, key string, ttl time.Duration, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		acquired, err := l.AcquireLock(ctx, key, ttl)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return false, nil
}

// leaderKeyPrefix namespaces the scheduler-instance leadership lock
// apart from any other use of the shared Redis client.
const leaderKeyPrefix = "schedulerd:leader:"

// InstanceLock gates one scheduler instance's Suspended -> Running
// transition in a multi-instance deployment. AcquireLeadership must
// succeed before calling Resume on the local sched.Scheduler; the
// caller is responsible for calling ReleaseLeadership on Suspend/Stop.
type InstanceLock struct {
	locker       *DistributedLocker
	databaseName string
	ttl          time.Duration
}

// NewInstanceLock builds an InstanceLock scoped to one database_name,
// so independent schedulers (one per tenant database) can each hold
// leadership without contending on a shared key.
func NewInstanceLock(locker *DistributedLocker, databaseName string, ttl time.Duration) *InstanceLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &InstanceLock{locker: locker, databaseName: databaseName, ttl: ttl}
}

// AcquireLeadership attempts to become the sole instance allowed to run
// this database_name's manager in Running state.
func (l *InstanceLock) AcquireLeadership(ctx context.Context) (bool, error) {
	return l.locker.AcquireLock(ctx, leaderKeyPrefix+l.databaseName, l.ttl)
}

// RefreshLeadership extends the leadership TTL; callers should call this
// periodically (well under the TTL) for as long as they remain Running.
// It returns held=false, err=nil when this instance is no longer (or
// never was) the leader, distinct from a transport error — callers must
// branch on held, not merely on err == nil, or a follower that never
// acquired leadership will be mistaken for a refreshed leader.
func (l *InstanceLock) RefreshLeadership(ctx context.Context) (bool, error) {
	return l.locker.RefreshLock(ctx, leaderKeyPrefix+l.databaseName, l.ttl)
}

// ReleaseLeadership gives up leadership, e.g. on Suspend or Stop.
func (l *InstanceLock) ReleaseLeadership(ctx context.Context) error {
	return l.locker.ReleaseLock(ctx, leaderKeyPrefix+l.databaseName)
}
