// File: internal/provider/cli.go
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
)

// CLIProvider invokes an external command for generation. The prompt is passed
// as the final argument after any configured extra arguments, and the command's
// stdout is the response. This covers agentic CLIs (e.g. `claude -p`) as well
// as arbitrary wrapper scripts.
type CLIProvider struct {
	command   string
	extraArgs []string
	logger    *zap.Logger
}

var _ schemas.Provider = (*CLIProvider)(nil)

// NewCLIProvider validates the command and constructs the provider. A command
// that cannot be found on PATH is a configuration error, surfaced here rather
// than on the first step of a run.
func NewCLIProvider(cfg config.ProviderConfig, logger *zap.Logger) (*CLIProvider, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("cli provider requires a command")
	}
	if _, err := exec.LookPath(cfg.Command); err != nil {
		return nil, fmt.Errorf("cli provider command %q not found: %w", cfg.Command, err)
	}
	return &CLIProvider{
		command:   cfg.Command,
		extraArgs: cfg.ExtraArgs,
		logger:    logger.Named("provider.cli"),
	}, nil
}

// Generate runs the command once and returns its stdout verbatim. A non-zero
// exit is reported as retryable with the captured stderr attached, since CLI
// agents routinely fail transiently (rate limits, network flakes).
func (p *CLIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	args := make([]string, 0, len(p.extraArgs)+1)
	args = append(args, p.extraArgs...)
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, p.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		// Context cancellation is not the command's fault; report it as-is so
		// the engine can unwind cleanly.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			p.logger.Warn("CLI command exited non-zero",
				zap.String("command", p.command),
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", truncate(stderr.String(), 512)),
			)
			return "", schemas.Retryable(fmt.Errorf("command %q exited with code %d: %s",
				p.command, exitErr.ExitCode(), strings.TrimSpace(stderr.String())))
		}
		return "", fmt.Errorf("failed to run command %q: %w", p.command, err)
	}

	p.logger.Info("CLI generation complete",
		zap.String("command", p.command),
		zap.Duration("duration", duration),
		zap.Int("response_bytes", stdout.Len()),
	)
	return stdout.String(), nil
}

// Close is a no-op; the provider holds no resources between calls.
func (p *CLIProvider) Close() error { return nil }

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
