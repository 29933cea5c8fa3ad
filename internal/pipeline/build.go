package pipeline

import (
	"fmt"
	"net/http"

	"coin-tracker/internal/auth"
	"coin-tracker/internal/config"
	"coin-tracker/internal/data"
	"coin-tracker/internal/retry"
	"coin-tracker/internal/sheets"

	"go.uber.org/zap"
)

// BuildOptions wires the production collaborators described by cfg.
// Callers may replace fields before passing the result to New.
func BuildOptions(cfg *config.Config, logger *zap.Logger) (Options, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}

	httpClient := &http.Client{Timeout: cfg.MetricsAPI.Timeout}
	doer := retry.New(cfg.Retry.ToPolicy(), httpClient, logger)
	fetcher := data.NewCoinCalcClient(cfg.MetricsAPI.BaseURL, doer, logger)
	fetcher.Cache = data.NewResponseCache(cfg.MetricsAPI.CacheTTL)

	provider, err := auth.NewProvider(cfg.Auth.ToOptions(), logger)
	if err != nil {
		return Options{}, fmt.Errorf("credential provider: %w", err)
	}

	return Options{
		Fetcher:     fetcher,
		Credentials: provider,
		Appender:    sheets.NewAppender(cfg.Sheet.Name, logger),
		Location:    loc,
		Logger:      logger,
	}, nil
}

// FromConfig builds a ready Pipeline from cfg.
func FromConfig(cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	opts, err := BuildOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(opts)
}
