// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
	"github.com/xkilldash9x/evolve-cli/internal/evolution"
	"github.com/xkilldash9x/evolve-cli/internal/observability"
	"github.com/xkilldash9x/evolve-cli/internal/service"
	"github.com/xkilldash9x/evolve-cli/internal/taskset"
)

// EngineRunner defines the interface for a component capable of executing the
// evolution loop. Using an interface allows for decoupling and easier testing
// by enabling mock implementations.
type EngineRunner interface {
	// Run executes the loop and returns the final playbook text.
	Run(ctx context.Context) (string, error)
}

// engineInitializer is a function signature for creating an EngineRunner.
// This allows for dependency injection of the engine's initialization logic,
// primarily for testing purposes.
type engineInitializer func(p evolution.Params) (EngineRunner, error)

// initializeEngine is the default implementation of engineInitializer.
func initializeEngine(p evolution.Params) (EngineRunner, error) {
	return evolution.NewEngine(p)
}

// runOptions collects the flag values of the run command.
type runOptions struct {
	task         string
	tasksGlob    string
	tasksDir     string
	criterion    string
	criteriaGlob string
	criteriaDir  string

	taskWrapperPath string
	shuffleSeed     int64
	shuffle         bool

	memLedger bool
}

// newRunCmd creates the 'run' command, which executes one full evolution run:
// StepSize task attempts, folded into playbook updates every BatchSize steps.
func newRunCmd() *cobra.Command {
	var opts runOptions
	initFn := initializeEngine

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the evolution loop against the configured task set.",
		Long: `The run command presents each task (cyclically) to the provider together with the
current playbook, records every attempt, and periodically asks the provider to
rewrite the playbook based on the accumulated attempts and their success criteria.
All playbook versions and raw generations are persisted for audit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			applyEvolutionFlagOverrides(cmd, cfg)
			applyProviderFlagOverrides(cmd, cfg)
			opts.shuffle = cmd.Flags().Changed("shuffle-seed")

			// Initialize the provider using the centralized initializer.
			prov, err := service.InitializeProvider(cfg.Provider(), logger)
			if err != nil {
				return err // Already logged and formatted by the initializer.
			}
			defer prov.Close()

			return runEvolution(ctx, cfg, logger, opts, prov, initFn)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.task, "task", "", "Single task input string.")
	f.StringVar(&opts.tasksGlob, "tasks", "", "Glob pattern for task input files.")
	f.StringVar(&opts.tasksDir, "tasks-dir", "", "Directory of task input files (non-template files, sorted).")
	f.StringVar(&opts.criterion, "criterion", "", "Single success criterion string.")
	f.StringVar(&opts.criteriaGlob, "criteria", "", "Glob pattern for criteria files.")
	f.StringVar(&opts.criteriaDir, "criteria-dir", "", "Directory of criteria files (non-template files, sorted).")
	f.StringVar(&opts.taskWrapperPath, "task-wrapper", "", "Optional template file wrapping each task file's content ({{.Content}}).")
	f.Int64Var(&opts.shuffleSeed, "shuffle-seed", 0, "Deterministically shuffle task/criterion pairs with this seed before the run.")
	f.BoolVar(&opts.memLedger, "mem-ledger", false, "Use the in-memory run ledger regardless of configuration.")

	f.String("provider", "", "Provider kind, cli or gemini (overrides config).")
	f.String("provider-command", "", "Command for the cli provider (overrides config).")

	f.Int("step-size", 0, "Number of evolution steps (overrides config).")
	f.Int("batch-size", 0, "Steps per playbook update (overrides config).")
	f.Int("max-retries", 0, "Provider attempts per playbook update (overrides config).")
	f.String("playbooks-dir", "", "Output directory for playbook versions (overrides config).")
	f.String("generations-dir", "", "Output directory for generations (overrides config).")
	f.String("prompt-generate-answer", "", "Path to the generation prompt template (overrides config).")
	f.String("prompt-update-playbook", "", "Path to the playbook update prompt template (overrides config).")
	f.String("schema-playbook", "", "Path to the initial playbook / schema file (overrides config).")

	return cmd
}

// applyEvolutionFlagOverrides copies explicitly set run flags over the file/env
// configuration. Flags win; unset flags leave the config untouched.
func applyEvolutionFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	ec := cfg.Evolution()
	f := cmd.Flags()

	if f.Changed("step-size") {
		ec.StepSize, _ = f.GetInt("step-size")
	}
	if f.Changed("batch-size") {
		ec.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("max-retries") {
		ec.MaxRetries, _ = f.GetInt("max-retries")
	}
	if f.Changed("playbooks-dir") {
		ec.PlaybooksDir, _ = f.GetString("playbooks-dir")
	}
	if f.Changed("generations-dir") {
		ec.GenerationsDir, _ = f.GetString("generations-dir")
	}
	if f.Changed("prompt-generate-answer") {
		ec.GeneratePromptPath, _ = f.GetString("prompt-generate-answer")
	}
	if f.Changed("prompt-update-playbook") {
		ec.UpdatePromptPath, _ = f.GetString("prompt-update-playbook")
	}
	if f.Changed("schema-playbook") {
		ec.SchemaPlaybookPath, _ = f.GetString("schema-playbook")
	}

	cfg.SetEvolutionConfig(ec)
}

// applyProviderFlagOverrides copies explicitly set provider flags over the
// file/env configuration, mirroring applyEvolutionFlagOverrides.
func applyProviderFlagOverrides(cmd *cobra.Command, cfg config.Interface) {
	pc := cfg.Provider()
	f := cmd.Flags()

	if f.Changed("provider") {
		kind, _ := f.GetString("provider")
		pc.Kind = config.ProviderKind(kind)
	}
	if f.Changed("provider-command") {
		pc.Command, _ = f.GetString("provider-command")
	}

	cfg.SetProviderConfig(pc)
}

// loadInputs resolves the task and criterion lists from the run flags. Exactly
// one task source and one criterion source must be given; counts must match.
func loadInputs(opts runOptions) (tasks, criteria []string, err error) {
	tasks, err = loadSource(opts.task, opts.tasksGlob, opts.tasksDir,
		"--task", "--tasks", "--tasks-dir")
	if err != nil {
		return nil, nil, err
	}
	criteria, err = loadSource(opts.criterion, opts.criteriaGlob, opts.criteriaDir,
		"--criterion", "--criteria", "--criteria-dir")
	if err != nil {
		return nil, nil, err
	}

	if len(tasks) != len(criteria) {
		return nil, nil, fmt.Errorf("number of tasks (%d) must match number of criteria (%d)", len(tasks), len(criteria))
	}

	if opts.taskWrapperPath != "" {
		wrapper, err := os.ReadFile(opts.taskWrapperPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read task wrapper template: %w", err)
		}
		tasks, err = taskset.Wrap(tasks, string(wrapper))
		if err != nil {
			return nil, nil, err
		}
	}

	if opts.shuffle {
		if err := taskset.Shuffle(tasks, criteria, opts.shuffleSeed); err != nil {
			return nil, nil, err
		}
	}
	return tasks, criteria, nil
}

// loadSource resolves one input list from its three possible sources: an inline
// string, a glob pattern, or a directory of files.
func loadSource(inline, glob, dir, inlineFlag, globFlag, dirFlag string) ([]string, error) {
	given := 0
	for _, v := range []string{inline, glob, dir} {
		if v != "" {
			given++
		}
	}
	switch {
	case given == 0:
		return nil, fmt.Errorf("one of %s, %s or %s must be provided", inlineFlag, globFlag, dirFlag)
	case given > 1:
		return nil, fmt.Errorf("%s, %s and %s are mutually exclusive", inlineFlag, globFlag, dirFlag)
	}

	switch {
	case inline != "":
		return []string{inline}, nil
	case glob != "":
		return taskset.LoadGlob(glob)
	default:
		return taskset.LoadDir(dir)
	}
}

// runEvolution contains the core application logic for the run command. It is
// decoupled from cobra and accepts all dependencies as arguments.
func runEvolution(
	ctx context.Context,
	cfg config.Interface,
	logger *zap.Logger,
	opts runOptions,
	prov schemas.Provider,
	initFn engineInitializer,
) error {
	tasks, criteria, err := loadInputs(opts)
	if err != nil {
		return err
	}

	ec := cfg.Evolution()

	generateTmpl, err := evolution.LoadTemplate(ec.GeneratePromptPath)
	if err != nil {
		return err
	}
	updateTmpl, err := evolution.LoadTemplate(ec.UpdatePromptPath)
	if err != nil {
		return err
	}

	initialPlaybook, err := os.ReadFile(ec.SchemaPlaybookPath)
	if err != nil {
		return fmt.Errorf("failed to read initial playbook %s: %w", ec.SchemaPlaybookPath, err)
	}

	// Initialize the run ledger; --mem-ledger forces the ephemeral backend.
	ledgerCfg := cfg.Ledger()
	if opts.memLedger {
		ledgerCfg.Type = "memory"
	}
	led, err := service.InitializeLedger(ctx, ledgerCfg, logger)
	if err != nil {
		logger.Error("Failed to initialize run ledger.", zap.Error(err))
		return fmt.Errorf("failed to initialize ledger: %w", err)
	}
	defer led.Close()

	engine, err := initFn(evolution.Params{
		Config:           ec,
		Provider:         prov,
		Ledger:           led,
		Tasks:            tasks,
		Criteria:         criteria,
		InitialPlaybook:  string(initialPlaybook),
		GenerateTemplate: generateTmpl,
		UpdateTemplate:   updateTmpl,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize evolution engine: %w", err)
	}

	logger.Info("Starting evolution run.",
		zap.Int("step_size", ec.StepSize),
		zap.Int("batch_size", ec.BatchSize),
		zap.Int("tasks", len(tasks)),
	)
	final, err := engine.Run(ctx)
	if err != nil {
		logger.Error("Evolution run finished with error.", zap.Error(err))
		return fmt.Errorf("evolution run error: %w", err)
	}

	logger.Info("Evolution run completed successfully.",
		zap.String("playbooks_dir", ec.PlaybooksDir),
		zap.Int("final_playbook_bytes", len(final)),
	)
	return nil
}
