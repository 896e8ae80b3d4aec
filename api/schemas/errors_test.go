package schemas

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	assert.Nil(t, Retryable(nil))

	base := errors.New("rate limited")
	err := Retryable(base)
	require.Error(t, err)
	assert.Equal(t, "rate limited", err.Error())
	assert.ErrorIs(t, err, base, "the cause must stay reachable through Unwrap")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("permanent")))
	assert.True(t, IsRetryable(Retryable(errors.New("transient"))))

	// Classification survives further wrapping.
	wrapped := fmt.Errorf("update failed: %w", Retryable(errors.New("transient")))
	assert.True(t, IsRetryable(wrapped))
}
