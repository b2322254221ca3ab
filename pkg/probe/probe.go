// Package probe lists the provider's models once at startup.
package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/llm-relay/pkg/inference"
	"github.com/teslashibe/llm-relay/pkg/metrics"
)

// DefaultTimeout bounds the model listing.
const DefaultTimeout = 5 * time.Second

const separator = "----------------------------------------"

// Run lists the provider's models and logs each name between separator
// lines. A failure is logged as a warning and returned; it never stops the
// server.
func Run(ctx context.Context, p inference.Provider, logger *slog.Logger, timeout time.Duration) ([]inference.Model, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	models, err := p.ListModels(ctx)
	if err != nil {
		logger.Warn("could not list models", "provider", p.Name(), "error", err)
		return nil, err
	}

	metrics.ProviderModels.WithLabelValues(p.Name()).Set(float64(len(models)))

	logger.Info(separator)
	logger.Info("available models", "provider", p.Name(), "count", len(models))
	for _, m := range models {
		logger.Info(" - "+m.Name, "size", m.Size)
	}
	logger.Info(separator)
	return models, nil
}
