// File: internal/provider/factory.go
package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
	"github.com/xkilldash9x/evolve-cli/internal/config"
)

// New is a factory function that constructs the configured Provider variant.
// Selection is explicit per configuration; there is no registry or
// dispatch-by-name indirection.
func New(cfg config.ProviderConfig, logger *zap.Logger) (schemas.Provider, error) {
	switch cfg.Kind {
	case config.ProviderCLI:
		return NewCLIProvider(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiProvider(cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}
