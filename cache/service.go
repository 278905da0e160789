package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"shared-cache/errors"
	"shared-cache/logging"
	"shared-cache/redis"
)

// Config holds the service-level cache settings. Immutable after
// construction; remote connection settings live in redis.Config.
type Config struct {
	// DefaultTTL is applied when an operation passes no explicit TTL
	DefaultTTL time.Duration
	// LocalCapacity bounds the local tier's entry count
	LocalCapacity int
	// SweepInterval is the period of the background expired-entry sweep
	SweepInterval time.Duration
	// Registerer receives the exported metrics; nil disables export
	Registerer prometheus.Registerer
}

// Entry is one key/value pair for a batched write. A zero TTL means the
// service default.
type Entry struct {
	Key   string
	Value interface{}
	TTL   time.Duration
}

// Value is one slot of a batched read
type Value struct {
	raw   []byte
	found bool
}

// Found reports whether the key was present in either tier
func (v Value) Found() bool { return v.found }

// Raw returns the serialized bytes, nil when absent
func (v Value) Raw() []byte { return v.raw }

// Decode unmarshals the value into dest
func (v Value) Decode(dest interface{}) error {
	if !v.found {
		return errors.NotFoundError("batched value")
	}
	if err := json.Unmarshal(v.raw, dest); err != nil {
		return errors.SerializationError("failed to decode cached value", err)
	}
	return nil
}

// Service orchestrates the local and remote tiers behind a single API.
//
// Reads go remote-first; a remote hit re-populates the local tier with the
// remaining remote TTL. Writes go remote-then-local, and a write that only
// the local tier accepts still succeeds, so an application degraded to a
// local-only cache stays usable. The local replica is disposable: the two
// tiers expire independently and the service makes no coherence promise
// beyond remote-wins-on-read.
//
// Construct with New, call Start for background maintenance, Close when
// done. Service is safe for concurrent use.
type Service struct {
	config  Config
	local   *LocalStore
	remote  *redis.Client
	tags    *tagIndex
	metrics *Recorder
	logger  logging.Logger
	sweeper *sweeper
}

// New creates a cache service. remote may be nil for a purely local cache;
// an unavailable remote degrades to the same local-only behavior.
func New(config Config, remote *redis.Client, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}

	metrics := NewRecorder(config.Registerer)
	local := NewLocalStore(config.LocalCapacity, metrics.Eviction)

	s := &Service{
		config:  config,
		local:   local,
		remote:  remote,
		tags:    newTagIndex(),
		metrics: metrics,
		logger:  logger,
	}
	s.sweeper = newSweeper(s, config.SweepInterval)
	return s
}

// Start launches the background maintenance sweep
func (s *Service) Start() {
	s.sweeper.start()
}

// Close stops maintenance and releases the remote connection
func (s *Service) Close() error {
	var result *multierror.Error

	if err := s.sweeper.stop(); err != nil {
		result = multierror.Append(result, err)
	}
	if s.remote != nil {
		if err := s.remote.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// remoteAvailable reports whether the remote tier can serve calls right now
func (s *Service) remoteAvailable() bool {
	return s.remote != nil && s.remote.Available()
}

// ttlOrDefault resolves an optional TTL argument
func (s *Service) ttlOrDefault(ttl []time.Duration) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return ttl[0]
	}
	return s.config.DefaultTTL
}

// Get looks up a key, remote tier first, and unmarshals the value into dest.
// dest may be nil to probe presence. A remote hit is replicated into the
// local tier with the remaining remote TTL. Exactly one hit or miss is
// recorded per call, whichever tier satisfied it.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if key == "" {
		return false, errors.ValidationError("cache key must not be empty")
	}
	s.metrics.GetOp()

	if s.remoteAvailable() {
		data, ttl, found, err := s.remote.GetWithTTL(ctx, key)
		switch {
		case err != nil:
			s.logger.Debug("remote get failed, falling back to local tier",
				logging.String("key", key), logging.Any("error", err))
		case found:
			if ttl <= 0 {
				ttl = s.config.DefaultTTL
			}
			if s.local.Set(key, data, ttl) {
				s.metrics.LocalKey()
			}
			s.metrics.Hit()
			if dest == nil {
				return true, nil
			}
			if err := json.Unmarshal(data, dest); err != nil {
				return false, errors.SerializationError("failed to decode cached value", err).WithContext("key", key)
			}
			return true, nil
		}
	}

	data, found := s.local.Get(key)
	if !found {
		s.metrics.Miss()
		return false, nil
	}

	s.metrics.Hit()
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, errors.SerializationError("failed to decode cached value", err).WithContext("key", key)
	}
	return true, nil
}

// Set serializes value and writes it to both tiers, remote first. The write
// succeeds when at least one tier accepted it; with the remote tier down the
// local tier alone carries it.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error {
	if key == "" {
		return errors.ValidationError("cache key must not be empty")
	}
	s.metrics.SetOp()

	data, err := json.Marshal(value)
	if err != nil {
		return errors.SerializationError("failed to encode value", err).WithContext("key", key)
	}

	d := s.ttlOrDefault(ttl)

	if s.remoteAvailable() {
		if err := s.remote.Set(ctx, key, data, d); err != nil {
			s.logger.Debug("remote set failed, keeping local write",
				logging.String("key", key), logging.Any("error", err))
		}
	}

	if s.local.Set(key, data, d) {
		s.metrics.LocalKey()
	}
	return nil
}

// Delete removes a key from both tiers and detaches it from the tag index.
// Returns true when either tier actually held the key.
func (s *Service) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.ValidationError("cache key must not be empty")
	}
	s.metrics.DeleteOp()

	removed := s.local.Delete(key)
	if s.remoteAvailable() {
		n, err := s.remote.Del(ctx, key)
		if err != nil {
			s.logger.Debug("remote delete failed",
				logging.String("key", key), logging.Any("error", err))
		} else if n > 0 {
			removed = true
		}
	}

	s.tags.removeKey(key)
	return removed, nil
}

// Exists checks key presence, remote tier first, local tier when the remote
// is unreachable.
func (s *Service) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.ValidationError("cache key must not be empty")
	}

	if s.remoteAvailable() {
		exists, err := s.remote.Exists(ctx, key)
		if err == nil {
			return exists, nil
		}
		s.logger.Debug("remote exists failed, falling back to local tier",
			logging.String("key", key), logging.Any("error", err))
	}

	_, found := s.local.Get(key)
	return found, nil
}

// Clear removes matching keys from both tiers and returns how many were
// removed across them. With an empty pattern both tiers are flushed
// entirely. Pattern semantics differ per tier and are deliberately not
// reconciled: the remote tier matches with its native glob syntax while the
// local tier matches by substring. Destructive and not reversible.
func (s *Service) Clear(ctx context.Context, pattern string) (int, error) {
	removed := 0

	if pattern == "" {
		if s.remoteAvailable() {
			keys, err := s.remote.Keys(ctx, "*")
			if err == nil && len(keys) > 0 {
				n, err := s.remote.Del(ctx, keys...)
				if err == nil {
					removed += int(n)
				}
			}
		}
		removed += s.local.Flush()
		s.tags.clear()
		return removed, nil
	}

	if s.remoteAvailable() {
		keys, err := s.remote.Keys(ctx, pattern)
		if err != nil {
			s.logger.Debug("remote pattern scan failed",
				logging.String("pattern", pattern), logging.Any("error", err))
		} else if len(keys) > 0 {
			n, err := s.remote.Del(ctx, keys...)
			if err == nil {
				removed += int(n)
			}
		}
	}

	removed += s.local.DeleteContaining(pattern)
	return removed, nil
}

// MGet retrieves many keys, preserving input order. One remote batch call
// where possible; keys the remote tier misses fall back individually to the
// local tier.
func (s *Service) MGet(ctx context.Context, keys []string) ([]Value, error) {
	results := make([]Value, len(keys))
	if len(keys) == 0 {
		return results, nil
	}
	s.metrics.GetOp()

	if s.remoteAvailable() {
		vals, err := s.remote.MGet(ctx, keys...)
		if err != nil {
			s.logger.Debug("remote mget failed, falling back to local tier",
				logging.Any("error", err))
		} else {
			for i, data := range vals {
				if data != nil {
					results[i] = Value{raw: data, found: true}
				}
			}
		}
	}

	for i, key := range keys {
		if results[i].found {
			s.metrics.Hit()
			continue
		}
		if data, found := s.local.Get(key); found {
			results[i] = Value{raw: data, found: true}
			s.metrics.Hit()
		} else {
			s.metrics.Miss()
		}
	}
	return results, nil
}

// MSet writes many entries: one pipelined remote batch, then sequential
// local writes.
func (s *Service) MSet(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.metrics.SetOp()

	remoteEntries := make([]redis.SetEntry, 0, len(entries))
	localData := make([][]byte, len(entries))
	for i, e := range entries {
		if e.Key == "" {
			return errors.ValidationError("cache key must not be empty")
		}
		data, err := json.Marshal(e.Value)
		if err != nil {
			return errors.SerializationError("failed to encode value", err).WithContext("key", e.Key)
		}
		localData[i] = data
		remoteEntries = append(remoteEntries, redis.SetEntry{
			Key:  e.Key,
			Data: data,
			TTL:  s.ttlOrDefault([]time.Duration{e.TTL}),
		})
	}

	if s.remoteAvailable() {
		if err := s.remote.MSet(ctx, remoteEntries); err != nil {
			s.logger.Debug("remote mset failed, keeping local writes",
				logging.Any("error", err))
		}
	}

	for i, e := range entries {
		if s.local.Set(e.Key, localData[i], s.ttlOrDefault([]time.Duration{e.TTL})) {
			s.metrics.LocalKey()
		}
	}
	return nil
}

// Cached is the cache-aside helper: look up key, and on a miss invoke
// compute, store its result and decode it into dest. compute runs at most
// once per call. Concurrent callers for the same key are not deduplicated;
// each racer computes independently and the last writer wins in both tiers.
func (s *Service) Cached(ctx context.Context, key string, dest interface{}, ttl time.Duration, compute func() (interface{}, error)) error {
	found, err := s.Get(ctx, key, dest)
	if err == nil && found {
		return nil
	}
	if err != nil && !errors.IsType(err, errors.ErrTypeSerialization) {
		return err
	}

	value, err := compute()
	if err != nil {
		return err
	}

	if err := s.Set(ctx, key, value, ttl); err != nil {
		return err
	}

	if dest == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.SerializationError("failed to encode computed value", err).WithContext("key", key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.SerializationError("failed to decode computed value", err).WithContext("key", key)
	}
	return nil
}

// Increment atomically adds delta to the counter at key on the remote tier.
// With the remote tier down it degrades to a non-atomic read-modify-write
// against the local tier only; concurrent local increments can race, which
// is acceptable for a single-process fallback counter.
func (s *Service) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, errors.ValidationError("cache key must not be empty")
	}

	if s.remoteAvailable() {
		n, err := s.remote.IncrBy(ctx, key, delta)
		if err == nil {
			if s.local.Set(key, []byte(strconv.FormatInt(n, 10)), s.config.DefaultTTL) {
				s.metrics.LocalKey()
			}
			return n, nil
		}
		s.logger.Debug("remote increment failed, using local counter",
			logging.String("key", key), logging.Any("error", err))
	}

	var current int64
	if data, found := s.local.Get(key); found {
		if parsed, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			current = parsed
		}
	}
	next := current + delta
	if s.local.Set(key, []byte(strconv.FormatInt(next, 10)), s.config.DefaultTTL) {
		s.metrics.LocalKey()
	}
	return next, nil
}

// Expire restarts a key's lifetime with a new TTL on both tiers. Returns
// true when either tier held the key.
func (s *Service) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.ValidationError("cache key must not be empty")
	}

	updated := s.local.SetTTL(key, ttl)
	if s.remoteAvailable() {
		ok, err := s.remote.Expire(ctx, key, ttl)
		if err != nil {
			s.logger.Debug("remote expire failed",
				logging.String("key", key), logging.Any("error", err))
		} else if ok {
			updated = true
		}
	}
	return updated, nil
}

// TTL reports a key's remaining lifetime in whole seconds: -2 when the key
// is absent from both tiers, -1 when the remote tier failed in a way that
// is not plain unavailability. A live key without an expiry reports 0.
func (s *Service) TTL(ctx context.Context, key string) int64 {
	if key == "" {
		return -1
	}

	if s.remoteAvailable() {
		ttl, exists, err := s.remote.TTL(ctx, key)
		switch {
		case err != nil && !errors.IsUnavailable(err):
			return -1
		case err == nil && exists:
			return int64(ttl / time.Second)
		}
		// absent remotely or unavailable: the local tier may still hold it
	}

	if remaining, ok := s.local.TTLRemaining(key); ok {
		return int64(remaining / time.Second)
	}
	return -2
}

// SetWithTags performs a Set and registers the key under each tag for later
// bulk invalidation.
func (s *Service) SetWithTags(ctx context.Context, key string, value interface{}, tags []string, ttl ...time.Duration) error {
	if err := s.Set(ctx, key, value, ttl...); err != nil {
		return err
	}
	s.tags.add(key, tags...)
	return nil
}

// InvalidateByTag deletes every key currently indexed under tag and drops
// the tag. The returned count covers only keys that were actually found and
// removed; members that expired on their own do not inflate it.
func (s *Service) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	keys := s.tags.keysFor(tag)

	removed := 0
	for _, key := range keys {
		ok, err := s.Delete(ctx, key)
		if err != nil {
			s.logger.Warn("failed to invalidate tagged key",
				logging.String("tag", tag), logging.String("key", key))
			continue
		}
		if ok {
			removed++
		}
	}

	s.tags.dropTag(tag)
	return removed, nil
}

// Metrics returns a snapshot of the cache counters
func (s *Service) Metrics() Metrics {
	return s.metrics.Snapshot()
}

// ResetMetrics zeroes the counters
func (s *Service) ResetMetrics() {
	s.metrics.Reset()
}

// Stats describes the cache's operational state for dashboards
type Stats struct {
	Metrics         Metrics `json:"metrics"`
	LocalSize       int     `json:"local_size"`
	RemoteAvailable bool    `json:"remote_available"`
}

// Stats returns the current operational state
func (s *Service) Stats() Stats {
	return Stats{
		Metrics:         s.metrics.Snapshot(),
		LocalSize:       s.local.Len(),
		RemoteAvailable: s.remoteAvailable(),
	}
}

// Ping reports remote tier health; nil remote is reported as unavailable
func (s *Service) Ping(ctx context.Context) error {
	if s.remote == nil {
		return errors.UnavailableError("no remote tier configured", nil)
	}
	return s.remote.Health(ctx)
}
