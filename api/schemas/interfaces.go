// File: api/schemas/interfaces.go
package schemas

import "context"

// Provider defines the external text-generation capability consumed by the
// evolution engine. Implementations are synchronous, single-shot and stateless:
// one prompt in, one response out. Anything richer (timeouts, provider-side
// retries, streaming reassembly) is the implementation's own business.
type Provider interface {
	// Generate produces a text completion for the given prompt. Errors wrapped
	// with Retryable mark transient failures that the caller may re-attempt.
	Generate(ctx context.Context, prompt string) (string, error)
	// Close releases any resources held by the provider.
	Close() error
}

// Ledger records run telemetry (one row per step, one per playbook update) to a
// backing store. Ledger writes are best-effort observability: the engine logs
// failures and moves on, since the on-disk artifacts are the source of truth.
type Ledger interface {
	RecordStep(ctx context.Context, rec StepRecord) error
	RecordUpdate(ctx context.Context, rec UpdateRecord) error
	Close()
}
