// File: internal/ledger/ledger.go

// Package ledger records run telemetry: one row per generation step and one
// per playbook update. The ledger is observability, not state — the engine
// never reads it back, and the filesystem artifacts stay the source of truth.
package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

// MemoryLedger is a fast, ephemeral, in-memory implementation. It's the
// default backend and what tests use.
type MemoryLedger struct {
	mu      sync.RWMutex
	steps   []schemas.StepRecord
	updates []schemas.UpdateRecord
	log     *zap.Logger
}

var _ schemas.Ledger = (*MemoryLedger)(nil)

// NewMemoryLedger creates a new, empty in-memory ledger.
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryLedger{log: logger.Named("ledger.memory")}
}

// RecordStep appends a step record.
func (l *MemoryLedger) RecordStep(ctx context.Context, rec schemas.StepRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, rec)
	l.log.Debug("Step recorded", zap.Int("step", rec.Step))
	return nil
}

// RecordUpdate appends an update record.
func (l *MemoryLedger) RecordUpdate(ctx context.Context, rec schemas.UpdateRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, rec)
	l.log.Debug("Update recorded", zap.Int("version", rec.NewVersion))
	return nil
}

// Steps returns a copy of all recorded step rows.
func (l *MemoryLedger) Steps() []schemas.StepRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schemas.StepRecord, len(l.steps))
	copy(out, l.steps)
	return out
}

// Updates returns a copy of all recorded update rows.
func (l *MemoryLedger) Updates() []schemas.UpdateRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]schemas.UpdateRecord, len(l.updates))
	copy(out, l.updates)
	return out
}

// Close is a no-op for the in-memory ledger.
func (l *MemoryLedger) Close() {}
