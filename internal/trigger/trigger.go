// Package trigger adapts invocation surfaces (direct calls and queued events)
// to plain pipeline runs.
package trigger

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"coin-tracker/internal/model"

	"go.uber.org/zap"
)

// MaxEventAge is how old an event may be before it is dropped unprocessed.
const MaxEventAge = 12 * time.Hour

// UpdateCommand is the event payload that requests a sheet update.
const UpdateCommand = "update"

// Results besides a successful run.
const (
	StatusTimeout = "Timeout"
	StatusIgnored = "Ignored"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, sheetID string, params model.RunParameters) (string, error)
}

// Direct is a direct invocation. Nil rig fields take the defaults; an explicit
// zero is kept.
type Direct struct {
	SheetID         string
	Hashrate        *int64
	PowerWatts      *float64
	PowerCostPerKwh *float64
}

// Params returns the run parameters with defaults applied to unset fields.
func (d Direct) Params(defaults model.RunParameters) model.RunParameters {
	p := defaults
	if d.Hashrate != nil {
		p.Hashrate = *d.Hashrate
	}
	if d.PowerWatts != nil {
		p.PowerWatts = *d.PowerWatts
	}
	if d.PowerCostPerKwh != nil {
		p.PowerCostPerKwh = *d.PowerCostPerKwh
	}
	return p
}

// Event is a queued invocation. Data is the base64 encoded payload.
type Event struct {
	ID        string
	Timestamp time.Time
	Data      string
}

// Handler serves both invocation shapes against one Runner.
type Handler struct {
	Runner   Runner
	SheetID  string
	Defaults model.RunParameters
	Now      func() time.Time

	log *zap.Logger
}

func NewHandler(runner Runner, sheetID string, defaults model.RunParameters, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Runner:   runner,
		SheetID:  sheetID,
		Defaults: defaults,
		Now:      time.Now,
		log:      logger.Named("trigger"),
	}
}

// HandleDirect runs the pipeline for d.
func (h *Handler) HandleDirect(ctx context.Context, d Direct) (string, error) {
	sheetID := d.SheetID
	if sheetID == "" {
		sheetID = h.SheetID
	}
	return h.Runner.Run(ctx, sheetID, d.Params(h.Defaults))
}

// HandleEvent drops events older than MaxEventAge, and runs the pipeline with
// the configured sheet when the payload is the update command.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) (string, error) {
	age := h.Now().Sub(ev.Timestamp)
	if age > MaxEventAge {
		h.log.Info("dropped stale event", zap.String("event_id", ev.ID), zap.Duration("age", age))
		return StatusTimeout, nil
	}
	h.log.Info("processing event", zap.String("event_id", ev.ID), zap.Duration("age", age))

	payload, err := DecodePayload(ev.Data)
	if err != nil {
		h.log.Warn("undecodable payload", zap.String("event_id", ev.ID), zap.Error(err))
		return StatusIgnored, nil
	}
	if payload != UpdateCommand {
		h.log.Info("ignoring payload", zap.String("event_id", ev.ID), zap.String("payload", payload))
		return StatusIgnored, nil
	}
	if h.SheetID == "" {
		return "", errors.New("COIN_SHEET_ID is not configured")
	}

	h.log.Info("received update request", zap.String("event_id", ev.ID))
	return h.Runner.Run(ctx, h.SheetID, h.Defaults)
}

// DecodePayload base64-decodes an event payload. Both padded and unpadded
// standard encodings are accepted.
func DecodePayload(data string) (string, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(data)
		if err != nil {
			return "", fmt.Errorf("decode payload: %w", err)
		}
	}
	return string(raw), nil
}
