// Package redis wraps a go-redis client as the remote tier of the shared
// cache. The adapter degrades instead of failing: a connection error at
// construction puts it in unavailable mode, and a circuit breaker turns
// repeated operation failures into unavailable results so the cache service
// can transparently serve from the local tier.
package redis

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"shared-cache/errors"
	"shared-cache/logging"
)

// Config holds the remote store connection settings
type Config struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	PoolSize  int    `json:"pool_size"`
	KeyPrefix string `json:"key_prefix"`

	// OpTimeout bounds every remote call; an exceeded deadline is reported
	// as a timeout and the caller falls back to the local tier
	OpTimeout time.Duration `json:"op_timeout"`

	// MaxMemory and EvictionPolicy are applied to the server on connect so
	// the remote tier self-bounds even if the application never deletes keys
	MaxMemory      string `json:"max_memory"`
	EvictionPolicy string `json:"eviction_policy"`
}

// SetEntry is one key/value pair for a batched write
type SetEntry struct {
	Key  string
	Data []byte
	TTL  time.Duration
}

// Client is the remote store adapter. It is safe for concurrent use.
type Client struct {
	rdb       *redis.Client
	config    *Config
	breaker   *gobreaker.CircuitBreaker
	logger    logging.Logger
	connected atomic.Bool
}

// compareAndDeleteScript deletes a key only when its current value matches
// the expected token. This must be a single indivisible server-side
// operation; a read followed by a delete would race with another owner
// acquiring the lock in between.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`)

// NewClient creates a remote store adapter. A failed connection attempt does
// not return an error: the adapter starts in unavailable mode and every call
// returns a typed unavailable result until the process is restarted with a
// reachable server.
func NewClient(config *Config, logger logging.Logger) (*Client, error) {
	if config == nil {
		return nil, errors.ValidationError("redis config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.OpTimeout == 0 {
		config.OpTimeout = 3 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Password:    config.Password,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.OpTimeout,
	})

	c := &Client{
		rdb:    rdb,
		config: config,
		logger: logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-remote",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("remote store circuit state changed",
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.OpTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("remote store unreachable, serving local tier only",
			logging.String("address", config.Address))
		c.connected.Store(false)
		return c, nil
	}

	c.connected.Store(true)
	c.applyServerPolicy()

	return c, nil
}

// applyServerPolicy configures the remote store's memory bound and eviction
// policy. Best effort: servers that reject CONFIG (or embedded test servers
// that do not implement it) only cost a warning.
func (c *Client) applyServerPolicy() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.OpTimeout)
	defer cancel()

	if c.config.MaxMemory != "" {
		if err := c.rdb.ConfigSet(ctx, "maxmemory", c.config.MaxMemory).Err(); err != nil {
			c.logger.Warn("could not set remote maxmemory",
				logging.String("maxmemory", c.config.MaxMemory),
				logging.Any("error", err))
		}
	}
	if c.config.EvictionPolicy != "" {
		if err := c.rdb.ConfigSet(ctx, "maxmemory-policy", c.config.EvictionPolicy).Err(); err != nil {
			c.logger.Warn("could not set remote eviction policy",
				logging.String("policy", c.config.EvictionPolicy),
				logging.Any("error", err))
		}
	}
}

// Available reports whether the remote tier can currently serve calls
func (c *Client) Available() bool {
	return c.connected.Load() && c.breaker.State() != gobreaker.StateOpen
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server with a bounded timeout
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "ping", func(ctx context.Context) error {
		return c.rdb.Ping(ctx).Err()
	})
}

// prefixed returns the storage key for a logical key
func (c *Client) prefixed(key string) string {
	return c.config.KeyPrefix + key
}

// do runs one remote operation through the circuit breaker under the
// configured timeout, mapping failures to the typed taxonomy. Callers must
// never return redis.Nil from fn; a miss is not a failure.
func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if !c.connected.Load() {
		return errors.UnavailableError("remote store is not connected", nil)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.config.OpTimeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn(opCtx)
	})
	if err == nil {
		return nil
	}

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.UnavailableError("remote store circuit open", err)
	}
	if opCtx.Err() == context.DeadlineExceeded {
		return errors.TimeoutError(op)
	}
	return errors.UnavailableError("remote "+op+" failed", err)
}

// Get retrieves the serialized value for a key. The second return value is
// false on a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	var found bool

	err := c.do(ctx, "get", func(ctx context.Context) error {
		val, err := c.rdb.Get(ctx, c.prefixed(key)).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		data = []byte(val)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, found, nil
}

// GetWithTTL retrieves a value together with its remaining TTL so the caller
// can replicate the entry into the local tier with the same expiry.
func (c *Client) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	var data []byte
	var ttl time.Duration
	var found bool

	err := c.do(ctx, "get", func(ctx context.Context) error {
		pipe := c.rdb.Pipeline()
		getCmd := pipe.Get(ctx, c.prefixed(key))
		ttlCmd := pipe.PTTL(ctx, c.prefixed(key))

		if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
			return err
		}
		if getCmd.Err() == redis.Nil {
			return nil
		}
		if err := getCmd.Err(); err != nil {
			return err
		}

		data = []byte(getCmd.Val())
		found = true
		if d := ttlCmd.Val(); d > 0 {
			ttl = d
		}
		return nil
	})
	if err != nil {
		return nil, 0, false, err
	}
	return data, ttl, found, nil
}

// Set stores a serialized value with an expiry
func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.do(ctx, "set", func(ctx context.Context) error {
		return c.rdb.Set(ctx, c.prefixed(key), data, ttl).Err()
	})
}

// SetNX stores a value only when the key is absent. Used for lock
// acquisition; the bool reports whether the conditional set won.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var acquired bool
	err := c.do(ctx, "setnx", func(ctx context.Context) error {
		ok, err := c.rdb.SetNX(ctx, c.prefixed(key), value, ttl).Result()
		if err != nil {
			return err
		}
		acquired = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// CompareAndDelete atomically deletes a key only when its value matches the
// expected token. Returns false when the value no longer matches.
func (c *Client) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	var deleted bool
	err := c.do(ctx, "compare-and-delete", func(ctx context.Context) error {
		res, err := compareAndDeleteScript.Run(ctx, c.rdb, []string{c.prefixed(key)}, expected).Int64()
		if err != nil {
			return err
		}
		deleted = res == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Del removes keys and returns how many existed
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefixed(k)
	}

	var removed int64
	err := c.do(ctx, "del", func(ctx context.Context) error {
		n, err := c.rdb.Del(ctx, prefixed...).Result()
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Exists reports whether a key is present
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := c.do(ctx, "exists", func(ctx context.Context) error {
		n, err := c.rdb.Exists(ctx, c.prefixed(key)).Result()
		if err != nil {
			return err
		}
		exists = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MGet retrieves many keys in one round-trip. The result preserves input
// order; missing keys yield nil slots.
func (c *Client) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefixed(k)
	}

	out := make([][]byte, len(keys))
	err := c.do(ctx, "mget", func(ctx context.Context) error {
		vals, err := c.rdb.MGet(ctx, prefixed...).Result()
		if err != nil {
			return err
		}
		for i, v := range vals {
			if s, ok := v.(string); ok {
				out[i] = []byte(s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MSet writes many entries in one pipelined transaction, each with its own TTL
func (c *Client) MSet(ctx context.Context, entries []SetEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return c.do(ctx, "mset", func(ctx context.Context) error {
		pipe := c.rdb.TxPipeline()
		for _, e := range entries {
			pipe.Set(ctx, c.prefixed(e.Key), e.Data, e.TTL)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

// IncrBy atomically adds delta to the integer stored at key
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	var val int64
	err := c.do(ctx, "incrby", func(ctx context.Context) error {
		n, err := c.rdb.IncrBy(ctx, c.prefixed(key), delta).Result()
		if err != nil {
			return err
		}
		val = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Expire sets a new TTL on an existing key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var ok bool
	err := c.do(ctx, "expire", func(ctx context.Context) error {
		set, err := c.rdb.Expire(ctx, c.prefixed(key), ttl).Result()
		if err != nil {
			return err
		}
		ok = set
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// TTL reports the remaining lifetime of a key. exists is false when the key
// is absent; a key without an expiry reports a zero TTL.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	var ttl time.Duration
	exists := true

	err := c.do(ctx, "ttl", func(ctx context.Context) error {
		d, err := c.rdb.TTL(ctx, c.prefixed(key)).Result()
		if err != nil {
			return err
		}
		switch d {
		case -2: // key does not exist
			exists = false
		case -1: // no expiry
			ttl = 0
		default:
			ttl = d
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return ttl, exists, nil
}

// Keys returns the logical keys matching a store-native glob pattern. The
// configured prefix is applied before scanning and stripped from the result.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := c.do(ctx, "keys", func(ctx context.Context) error {
		iter := c.rdb.Scan(ctx, 0, c.prefixed(pattern), 0).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, strings.TrimPrefix(iter.Val(), c.config.KeyPrefix))
		}
		return iter.Err()
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
