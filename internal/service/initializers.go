// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
	"github.com/xkilldash9x/evolve-cli/internal/ledger"
	"github.com/xkilldash9x/evolve-cli/internal/provider"
)

// InitializeProvider creates the configured Provider. This helper centralizes
// provider construction for the run command and keeps error reporting uniform.
func InitializeProvider(cfg config.ProviderConfig, logger *zap.Logger) (schemas.Provider, error) {
	p, err := provider.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize provider.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}
	return p, nil
}

// InitializeLedger connects to the configured ledger backend, defaulting to an
// ephemeral in-memory ledger when nothing persistent is configured.
func InitializeLedger(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (schemas.Ledger, error) {
	switch cfg.Type {
	case "", "memory", "in-memory":
		if cfg.Type == "" {
			logger.Warn("No persistent ledger configured; run telemetry will be lost on exit.")
		}
		return ledger.NewMemoryLedger(logger), nil

	case "postgres":
		logger.Info("Initializing PostgreSQL ledger.", zap.String("host", cfg.Postgres.Host))
		connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host,
			cfg.Postgres.Port, cfg.Postgres.DBName, cfg.Postgres.SSLMode)

		poolConfig, err := pgxpool.ParseConfig(connString)
		if err != nil {
			return nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
		}
		poolConfig.MaxConns = 4
		poolConfig.MaxConnLifetime = 1 * time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
		}

		l, err := ledger.NewPostgresLedger(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return l, nil
	}

	return nil, fmt.Errorf("unsupported ledger type: %s", cfg.Type)
}
