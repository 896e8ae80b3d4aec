package provider

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
)

func TestNewCLIProvider_ValidatesCommand(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("empty command", func(t *testing.T) {
		_, err := NewCLIProvider(config.ProviderConfig{}, logger)
		require.Error(t, err)
	})

	t.Run("command not on PATH", func(t *testing.T) {
		_, err := NewCLIProvider(config.ProviderConfig{Command: "definitely-not-a-real-command-xyz"}, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestCLIProvider_GenerateEchoesStdout(t *testing.T) {
	p, err := NewCLIProvider(config.ProviderConfig{Command: "echo"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer p.Close()

	out, err := p.Generate(context.Background(), "hello playbook")
	require.NoError(t, err)
	assert.Equal(t, "hello playbook\n", out)
}

func TestCLIProvider_ExtraArgsPrecedePrompt(t *testing.T) {
	// `printf '%s|%s' -- <prompt>` proves the prompt lands after the
	// configured arguments.
	p, err := NewCLIProvider(config.ProviderConfig{
		Command:   "printf",
		ExtraArgs: []string{"%s|%s", "--"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := p.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "--|the prompt", out)
}

func TestCLIProvider_NonZeroExitIsRetryable(t *testing.T) {
	p, err := NewCLIProvider(config.ProviderConfig{
		Command:   "sh",
		ExtraArgs: []string{"-c", "echo 'rate limited' >&2; exit 7"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "ignored")
	require.Error(t, err)
	assert.True(t, schemas.IsRetryable(err), "non-zero exit must be retryable")
	assert.Contains(t, err.Error(), "code 7")
	assert.Contains(t, err.Error(), "rate limited", "stderr must be attached to the error")
}

func TestCLIProvider_ContextCancellation(t *testing.T) {
	p, err := NewCLIProvider(config.ProviderConfig{
		Command:   "sh",
		ExtraArgs: []string{"-c", "sleep 30"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = p.Generate(ctx, "ignored")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, schemas.IsRetryable(err), "cancellation is not the command's fault")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 20)
	assert.Equal(t, strings.Repeat("x", 10)+"...", truncate(long, 10))
}
