// Package config provides configuration management for the shared cache layer.
// It loads configuration from environment variables with sensible defaults and
// validates it before the cache service is constructed.
//
// Environment Variables:
//
// Cache Settings:
//   - CACHE_DEFAULT_TTL: Default entry TTL (default: 5m)
//   - CACHE_KEY_PREFIX: Prefix namespacing all remote keys (default: cache:)
//   - CACHE_LOCAL_CAPACITY: Local store entry capacity (default: 1000)
//   - CACHE_SWEEP_INTERVAL: Background sweep interval (default: 1m)
//   - CACHE_REMOTE_MAX_MEMORY: Remote store memory bound, e.g. "128mb" (default: 128mb)
//   - CACHE_REMOTE_EVICTION_POLICY: One of allkeys-lru, allkeys-lfu,
//     volatile-lru, volatile-lfu (default: allkeys-lru)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - REDIS_OP_TIMEOUT: Per-operation timeout (default: 3s)
//
// Logging:
//   - LOG_LEVEL: Logging level (default: info)
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Valid remote eviction policies: {allkeys, volatile} x {lru, lfu}
var validEvictionPolicies = map[string]bool{
	"allkeys-lru":  true,
	"allkeys-lfu":  true,
	"volatile-lru": true,
	"volatile-lfu": true,
}

// maxMemoryPattern matches Redis-style memory size strings like "128mb"
var maxMemoryPattern = regexp.MustCompile(`^[0-9]+(kb|mb|gb)?$`)

// Config holds all configuration values for the cache layer. All fields
// correspond to environment variables that can be set to override defaults.
// The configuration is immutable after construction; load once, validate,
// then hand it to the service constructor.
type Config struct {
	// Cache settings
	DefaultTTL           time.Duration // Default TTL applied when none is given
	KeyPrefix            string        // Namespace prefix for all remote keys
	LocalCapacity        int           // Local store entry capacity
	SweepInterval        time.Duration // Background expired-entry sweep interval
	RemoteMaxMemory      string        // Remote store memory bound (size string)
	RemoteEvictionPolicy string        // Remote eviction policy

	// Redis settings
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	RedisTimeout  time.Duration // Per-operation timeout for remote calls

	// Logging
	LogLevel string
}

// Load creates a Config with values from the environment. A .env file in the
// working directory is loaded first when present. Load does not validate;
// call Validate on the result before use.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DefaultTTL:           getDurationEnv("CACHE_DEFAULT_TTL", 5*time.Minute),
		KeyPrefix:            getEnv("CACHE_KEY_PREFIX", "cache:"),
		LocalCapacity:        getIntEnv("CACHE_LOCAL_CAPACITY", 1000),
		SweepInterval:        getDurationEnv("CACHE_SWEEP_INTERVAL", time.Minute),
		RemoteMaxMemory:      getEnv("CACHE_REMOTE_MAX_MEMORY", "128mb"),
		RemoteEvictionPolicy: getEnv("CACHE_REMOTE_EVICTION_POLICY", "allkeys-lru"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),
		RedisTimeout:  getDurationEnv("REDIS_OP_TIMEOUT", 3*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks that all configuration values are usable. It returns the
// first problem found.
func (c *Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive, got %v", c.DefaultTTL)
	}
	if c.LocalCapacity <= 0 {
		return fmt.Errorf("CACHE_LOCAL_CAPACITY must be positive, got %d", c.LocalCapacity)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("CACHE_SWEEP_INTERVAL must be positive, got %v", c.SweepInterval)
	}
	if !validEvictionPolicies[c.RemoteEvictionPolicy] {
		return fmt.Errorf("invalid CACHE_REMOTE_EVICTION_POLICY %q", c.RemoteEvictionPolicy)
	}
	if c.RemoteMaxMemory != "" && !maxMemoryPattern.MatchString(c.RemoteMaxMemory) {
		return fmt.Errorf("invalid CACHE_REMOTE_MAX_MEMORY %q, expected a size like \"128mb\"", c.RemoteMaxMemory)
	}
	if c.RedisAddress == "" {
		return fmt.Errorf("REDIS_ADDRESS must not be empty")
	}
	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("REDIS_DB must be 0-15, got %d", c.RedisDB)
	}
	if c.RedisPoolSize <= 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must be positive, got %d", c.RedisPoolSize)
	}
	if c.RedisTimeout <= 0 {
		return fmt.Errorf("REDIS_OP_TIMEOUT must be positive, got %v", c.RedisTimeout)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default when unset
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable or returns a default
// when unset or unparsable
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable (Go duration
// syntax, e.g. "30s") or returns a default when unset or unparsable
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
