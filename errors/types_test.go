package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheError_Error(t *testing.T) {
	t.Run("type and message", func(t *testing.T) {
		err := ValidationError("empty key")
		assert.Equal(t, "validation: empty key", err.Error())
	})

	t.Run("includes cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := UnavailableError("redis unreachable", cause)
		assert.Contains(t, err.Error(), "unavailable")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("includes context", func(t *testing.T) {
		err := SerializationError("decode failed", nil).WithContext("key", "user:42")
		assert.Contains(t, err.Error(), "key=user:42")
	})
}

func TestCacheError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := InternalError("sweep failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		errType  ErrorType
		expected bool
	}{
		{"matching type", UnavailableError("down", nil), ErrTypeUnavailable, true},
		{"different type", ValidationError("bad key"), ErrTypeUnavailable, false},
		{"nil error", nil, ErrTypeUnavailable, false},
		{"foreign error", fmt.Errorf("plain"), ErrTypeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsType(tt.err, tt.errType))
		})
	}
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(UnavailableError("down", nil)))
	assert.False(t, IsUnavailable(TimeoutError("get")))
	assert.False(t, IsUnavailable(nil))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeTimeout, GetType(TimeoutError("mget")))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrorType(""), GetType(nil))
}
