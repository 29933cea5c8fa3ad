// Package pipeline runs one fetch, transform and append cycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-tracker/internal/auth"
	"coin-tracker/internal/ledger"
	"coin-tracker/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusSuccess is returned by a run that appended its row.
const StatusSuccess = "Successful Update"

// Fetcher retrieves profitability metrics for a rig.
type Fetcher interface {
	Fetch(ctx context.Context, params model.RunParameters) (*model.CoinMetrics, error)
}

// Appender writes one row to a spreadsheet.
type Appender interface {
	AppendRow(ctx context.Context, sheetID string, creds *auth.Credentials, row ledger.OutputRow) error
}

// Options wires the pipeline's collaborators.
type Options struct {
	Fetcher     Fetcher
	Credentials auth.Provider
	Appender    Appender

	// Location renders the row timestamp; nil means time.Local.
	Location *time.Location
	Logger   *zap.Logger
}

type Pipeline struct {
	fetcher  Fetcher
	creds    auth.Provider
	appender Appender
	loc      *time.Location
	log      *zap.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is nil")
	}
	if opts.Credentials == nil {
		return nil, errors.New("credential provider is nil")
	}
	if opts.Appender == nil {
		return nil, errors.New("appender is nil")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:  opts.Fetcher,
		creds:    opts.Credentials,
		appender: opts.Appender,
		loc:      opts.Location,
		log:      opts.Logger.Named("pipeline"),
	}, nil
}

// Run fetches metrics for params and appends the resulting row to sheetID.
// Errors from every stage are returned wrapped; nothing is retried here.
func (p *Pipeline) Run(ctx context.Context, sheetID string, params model.RunParameters) (status string, err error) {
	log := p.log.With(zap.String("run_id", uuid.NewString()), zap.String("sheet_id", sheetID))
	start := time.Now()
	defer func() {
		observeRun(start, err)
		if err != nil {
			log.Error("run failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		}
	}()

	if sheetID == "" {
		return "", errors.New("sheet id is required")
	}
	if err := params.Validate(); err != nil {
		return "", fmt.Errorf("invalid run parameters: %w", err)
	}

	row, err := p.Preview(ctx, params, log)
	if err != nil {
		return "", err
	}

	log.Info("auth start")
	creds, err := p.creds.Credentials(ctx)
	if err != nil {
		return "", fmt.Errorf("credentials: %w", err)
	}
	log.Info("auth end", zap.Bool("token_valid", creds.Valid()))

	if err := p.appender.AppendRow(ctx, sheetID, creds, row); err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}

	log.Info("run complete", zap.Duration("duration", time.Since(start)))
	return StatusSuccess, nil
}

// Preview fetches and transforms without touching credentials or the sheet.
func (p *Pipeline) Preview(ctx context.Context, params model.RunParameters, log *zap.Logger) (ledger.OutputRow, error) {
	if log == nil {
		log = p.log
	}

	fetchStart := time.Now()
	metrics, err := p.fetcher.Fetch(ctx, params)
	fetchDuration.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return ledger.OutputRow{}, fmt.Errorf("fetch metrics: %w", err)
	}

	row, err := ledger.Transform(metrics, params, p.loc)
	if err != nil {
		return ledger.OutputRow{}, fmt.Errorf("transform metrics: %w", err)
	}
	log.Info("calculated row",
		zap.String("last_update", row.Timestamp),
		zap.Float64("rewards_in_day", row.RewardsInDay),
		zap.Float64("profit_in_day_usd", row.ProfitInDayUSD),
		zap.Float64("profit_in_rewards", row.ProfitInRewards))
	return row, nil
}
