// Package locks provides distributed mutual exclusion built on the remote
// store's atomic primitives: a conditional set acquires, an atomic
// compare-and-delete releases.
//
// Ownership is decided solely by token equality. Acquire returns a random
// token; only a Release carrying that token removes the lock, so a caller
// whose lock expired and was re-acquired elsewhere can never delete the new
// owner's lock.
//
// There is no renewal: a critical section that overruns its TTL loses
// mutual exclusion silently, so callers must pick a TTL that exceeds the
// longest expected critical section. Without remote connectivity no lock is
// offered at all; a process-local lock would only constrain one instance
// and give a false sense of fleet-wide exclusion.
package locks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	cacheerrors "shared-cache/errors"
	"shared-cache/logging"
)

// keyPrefix namespaces lock records away from ordinary cache entries
const keyPrefix = "lock:"

// ErrNotAcquired is returned by WithLock when the lock is held elsewhere or
// the remote tier is unreachable.
var ErrNotAcquired = errors.New("locks: not acquired")

// RemoteClient is the slice of the remote store adapter the manager needs
type RemoteClient interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	Available() bool
}

// Manager coordinates distributed locks through the remote store. Safe for
// concurrent use; it keeps no local lock state, the remote record is the
// only source of truth.
type Manager struct {
	remote RemoteClient
	logger logging.Logger
}

// NewManager creates a lock manager on top of a remote store adapter
func NewManager(remote RemoteClient, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Manager{remote: remote, logger: logger}
}

// Acquire attempts to take the lock. On success it returns the owner token;
// ok is false when another owner holds the lock or the remote tier is
// unreachable. Contention is a normal outcome, not an error.
func (m *Manager) Acquire(ctx context.Context, lockKey string, ttl time.Duration) (token string, ok bool, err error) {
	if lockKey == "" {
		return "", false, cacheerrors.ValidationError("lock key must not be empty")
	}
	if ttl <= 0 {
		return "", false, cacheerrors.ValidationError("lock ttl must be positive")
	}
	if m.remote == nil || !m.remote.Available() {
		return "", false, nil
	}

	token = uuid.NewString()
	acquired, err := m.remote.SetNX(ctx, keyPrefix+lockKey, token, ttl)
	if err != nil {
		if cacheerrors.IsUnavailable(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}

	m.logger.Debug("acquired distributed lock",
		logging.String("key", lockKey), logging.Duration("ttl", ttl))
	return token, true, nil
}

// Release removes the lock only when the caller's token still owns it. The
// check and delete run as one indivisible remote operation. Returns false
// when the token no longer matches, which happens after expiry followed by
// re-acquisition elsewhere; that is an expected outcome, not an error.
func (m *Manager) Release(ctx context.Context, lockKey, token string) (bool, error) {
	if lockKey == "" || token == "" {
		return false, cacheerrors.ValidationError("lock key and token must not be empty")
	}
	if m.remote == nil || !m.remote.Available() {
		return false, nil
	}

	released, err := m.remote.CompareAndDelete(ctx, keyPrefix+lockKey, token)
	if err != nil {
		if cacheerrors.IsUnavailable(err) {
			return false, nil
		}
		return false, err
	}

	if !released {
		m.logger.Debug("lock token no longer owns the lock",
			logging.String("key", lockKey))
	}
	return released, nil
}

// WithLock runs fn while holding the lock, releasing it afterwards. Returns
// ErrNotAcquired without running fn when the lock cannot be taken.
func (m *Manager) WithLock(ctx context.Context, lockKey string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, ok, err := m.Acquire(ctx, lockKey, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := m.Release(releaseCtx, lockKey, token); err != nil {
			m.logger.Warn("failed to release lock",
				logging.String("key", lockKey), logging.Any("error", err))
		}
	}()

	return fn(ctx)
}
