// File: internal/evolution/engine.go
package evolution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
)

// Engine drives the evolution loop: for each step it renders the generation
// prompt from the latest playbook, invokes the provider, records the attempt,
// and every BatchSize steps (or at the final step) folds the accumulated
// evidence into a new playbook version.
//
// The loop is strictly sequential by design: each generation depends on the
// playbook produced by the previous update, and each update depends on all
// generations in its batch. The only blocking point per step is the provider
// call.
type Engine struct {
	cfg      config.EvolutionConfig
	provider schemas.Provider
	ledger   schemas.Ledger // optional; nil disables telemetry

	genTemplate    *Template
	updateTemplate *Template

	store  *PlaybookStore
	genLog *GenerationLog

	tasks    []string
	criteria []string

	runID  string
	logger *zap.Logger
}

// Params collects the dependencies of an Engine. Everything here is fixed for
// the duration of one run.
type Params struct {
	Config           config.EvolutionConfig
	Provider         schemas.Provider
	Ledger           schemas.Ledger // optional
	Tasks            []string
	Criteria         []string
	InitialPlaybook  string
	GenerateTemplate *Template
	UpdateTemplate   *Template
	Logger           *zap.Logger
}

// NewEngine validates preconditions and constructs the engine. Every error
// here is a configuration error: fatal, surfaced before the loop begins.
func NewEngine(p Params) (*Engine, error) {
	if p.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if p.GenerateTemplate == nil || p.UpdateTemplate == nil {
		return nil, fmt.Errorf("both prompt templates are required")
	}
	if len(p.Tasks) == 0 {
		return nil, fmt.Errorf("task list must not be empty")
	}
	if len(p.Tasks) != len(p.Criteria) {
		return nil, fmt.Errorf("number of tasks (%d) must match number of criteria (%d)",
			len(p.Tasks), len(p.Criteria))
	}
	if p.Config.StepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %d", p.Config.StepSize)
	}
	if p.Config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", p.Config.BatchSize)
	}
	if p.Config.MaxRetries < 1 {
		return nil, fmt.Errorf("max retries must be at least 1, got %d", p.Config.MaxRetries)
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("engine")

	store, err := NewPlaybookStore(p.Config.PlaybooksDir, p.InitialPlaybook, logger)
	if err != nil {
		return nil, err
	}
	genLog, err := NewGenerationLog(p.Config.GenerationsDir, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:            p.Config,
		provider:       p.Provider,
		ledger:         p.Ledger,
		genTemplate:    p.GenerateTemplate,
		updateTemplate: p.UpdateTemplate,
		store:          store,
		genLog:         genLog,
		tasks:          p.Tasks,
		criteria:       p.Criteria,
		runID:          uuid.NewString(),
		logger:         logger,
	}, nil
}

// Store exposes the playbook version history for inspection after a run.
func (e *Engine) Store() *PlaybookStore { return e.store }

// Generations exposes the generation history for inspection after a run.
func (e *Engine) Generations() []schemas.Generation { return e.genLog.History() }

// Run executes the full evolution loop and returns the final playbook text.
// The single state variable is the step counter; tasks and criteria are reused
// cyclically when StepSize exceeds the list length. Any generation-step
// provider failure is fatal; update-step failures are retried up to MaxRetries
// before aborting.
func (e *Engine) Run(ctx context.Context) (string, error) {
	e.logger.Info("Starting evolution run",
		zap.String("run_id", e.runID),
		zap.Int("step_size", e.cfg.StepSize),
		zap.Int("batch_size", e.cfg.BatchSize),
		zap.Int("tasks", len(e.tasks)),
	)

	sinceUpdate := 0
	for step := 0; step < e.cfg.StepSize; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		taskIdx := step % len(e.tasks)
		e.logger.Info("Evolution step",
			zap.Int("step", step+1),
			zap.Int("of", e.cfg.StepSize),
			zap.Int("task_index", taskIdx),
			zap.Int("playbook_version", e.store.LatestVersion()),
		)

		if err := e.runGeneration(ctx, step, taskIdx); err != nil {
			// No retry here: a malformed attempt must not be silently masked,
			// or the audit trail would be corrupted.
			return "", fmt.Errorf("generation step %d failed: %w", step, err)
		}
		sinceUpdate++

		if sinceUpdate >= e.cfg.BatchSize || step == e.cfg.StepSize-1 {
			if err := e.updatePlaybook(ctx, step, sinceUpdate); err != nil {
				return "", err
			}
			sinceUpdate = 0
		}
	}

	e.logger.Info("Evolution run complete",
		zap.String("run_id", e.runID),
		zap.Int("final_version", e.store.LatestVersion()),
	)
	return e.store.Latest(), nil
}

// runGeneration executes one generation step: render, invoke, persist.
func (e *Engine) runGeneration(ctx context.Context, step, taskIdx int) error {
	version := e.store.LatestVersion()

	prompt, err := e.genTemplate.Render(e.promptContext(step, taskIdx))
	if err != nil {
		return err
	}

	start := time.Now()
	text, err := e.provider.Generate(ctx, prompt)
	duration := time.Since(start)
	if err != nil {
		return fmt.Errorf("provider error: %w", err)
	}

	gen := schemas.Generation{
		Step:            step,
		TaskIndex:       taskIdx,
		PlaybookVersion: version,
		Text:            text,
	}
	if err := e.genLog.Append(gen); err != nil {
		return err
	}

	e.recordStep(ctx, schemas.StepRecord{
		RunID:           e.runID,
		Step:            step,
		TaskIndex:       taskIdx,
		PlaybookVersion: version,
		Duration:        duration,
		Timestamp:       time.Now().UTC(),
	})
	return nil
}

// updatePlaybook folds the accumulated evidence into a new playbook version.
// Retryable provider failures are re-attempted identically (re-render and
// re-invoke) up to MaxRetries; exhaustion aborts the run, since every later
// step depends on having a latest playbook.
func (e *Engine) updatePlaybook(ctx context.Context, step, batchCount int) error {
	e.logger.Info("Updating playbook",
		zap.Int("triggering_step", step),
		zap.Int("batch_count", batchCount),
		zap.Int("current_version", e.store.LatestVersion()),
	)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := e.pause(ctx, e.cfg.RetryBackoff); err != nil {
				return err
			}
		}

		pctx := e.promptContext(step, step%len(e.tasks))
		pctx.PlaybookLatestVersion = e.store.LatestVersion()
		pctx.StepSize = e.cfg.StepSize
		pctx.BatchSize = e.cfg.BatchSize

		prompt, err := e.updateTemplate.Render(pctx)
		if err != nil {
			// Template failures are configuration errors, not transient ones.
			return err
		}

		response, err := e.provider.Generate(ctx, prompt)
		if err != nil {
			if !schemas.IsRetryable(err) || ctx.Err() != nil {
				return fmt.Errorf("playbook update failed: %w", err)
			}
			lastErr = err
			e.logger.Warn("Playbook update attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", e.cfg.MaxRetries),
				zap.Error(err),
			)
			continue
		}

		// Extraction cannot fail: a response without a fenced block degrades
		// to the full text.
		playbook := ExtractPlaybook(response)
		version, err := e.store.Append(playbook, response)
		if err != nil {
			return err
		}

		e.recordUpdate(ctx, schemas.UpdateRecord{
			RunID:      e.runID,
			Step:       step,
			NewVersion: version,
			BatchSize:  batchCount,
			Attempts:   attempt,
			Duration:   time.Since(start),
			Timestamp:  time.Now().UTC(),
		})
		return nil
	}

	return fmt.Errorf("playbook update failed after %d attempts: %w", e.cfg.MaxRetries, lastErr)
}

// promptContext assembles the full-history template context for a step.
func (e *Engine) promptContext(step, taskIdx int) PromptContext {
	playbooks := e.store.History()
	return PromptContext{
		CurrentPlaybook:  playbooks[len(playbooks)-1],
		CurrentTask:      e.tasks[taskIdx],
		CurrentCriterion: e.criteria[taskIdx],
		Tasks:            e.tasks,
		Criteria:         e.criteria,
		Generations:      e.genLog.History(),
		Playbooks:        playbooks,
		StepID:           step,
	}
}

// pause waits for the retry backoff, unwinding promptly on cancellation.
func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recordStep writes a step row to the ledger. Best effort only.
func (e *Engine) recordStep(ctx context.Context, rec schemas.StepRecord) {
	if e.ledger == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.ledger.RecordStep(recCtx, rec); err != nil {
		e.logger.Warn("Failed to record step in ledger", zap.Int("step", rec.Step), zap.Error(err))
	}
}

// recordUpdate writes an update row to the ledger. Best effort only.
func (e *Engine) recordUpdate(ctx context.Context, rec schemas.UpdateRecord) {
	if e.ledger == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.ledger.RecordUpdate(recCtx, rec); err != nil {
		e.logger.Warn("Failed to record update in ledger", zap.Int("version", rec.NewVersion), zap.Error(err))
	}
}
