package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coin-tracker/internal/api/models"
	"coin-tracker/internal/auth"
	"coin-tracker/internal/ledger"
	"coin-tracker/internal/model"
	"coin-tracker/internal/retry"
	"coin-tracker/internal/sheets"
	"coin-tracker/internal/trigger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Previewer computes the row for a rig without writing it.
type Previewer interface {
	Preview(ctx context.Context, params model.RunParameters, log *zap.Logger) (ledger.OutputRow, error)
}

// UpdateHandler serves the direct and Pub/Sub push triggers.
type UpdateHandler struct {
	trigger *trigger.Handler
	preview Previewer
}

// NewUpdateHandler creates a new update handler
func NewUpdateHandler(t *trigger.Handler, p Previewer) *UpdateHandler {
	return &UpdateHandler{trigger: t, preview: p}
}

// Update handles POST /api/v1/update
func (h *UpdateHandler) Update(c *gin.Context) {
	var req models.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	status, err := h.trigger.HandleDirect(c.Request.Context(), trigger.Direct{
		SheetID:         req.SheetID,
		Hashrate:        req.Hashrate,
		PowerWatts:      req.PowerWatts,
		PowerCostPerKwh: req.PowerCostPerKwh,
	})
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.UpdateResponse{Status: status})
}

// Preview handles GET /api/v1/preview
func (h *UpdateHandler) Preview(c *gin.Context) {
	var req models.PreviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	params := trigger.Direct{
		Hashrate:        req.Hashrate,
		PowerWatts:      req.PowerWatts,
		PowerCostPerKwh: req.PowerCostPerKwh,
	}.Params(h.trigger.Defaults)

	row, err := h.preview.Preview(c.Request.Context(), params, nil)
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.PreviewResponse{Columns: ledger.Header(), Row: row.Values()})
}

// PushEvent handles POST /api/v1/events, the Pub/Sub push endpoint.
// A non-2xx reply makes Pub/Sub redeliver the message.
func (h *UpdateHandler) PushEvent(c *gin.Context) {
	var req models.PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_PUSH",
				Message: err.Error(),
			},
		})
		return
	}

	published, err := time.Parse(time.RFC3339Nano, req.Message.PublishTime)
	if err != nil {
		published = h.trigger.Now()
	}

	status, err := h.trigger.HandleEvent(c.Request.Context(), trigger.Event{
		ID:        req.Message.MessageID,
		Timestamp: published,
		Data:      req.Message.Data,
	})
	if err != nil {
		writePipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.UpdateResponse{Status: status})
}

func writePipelineError(c *gin.Context, err error) {
	var (
		fatal    *retry.FatalError
		dataErr  *model.DataError
		authErr  *auth.AuthError
		writeErr *sheets.WriteError
	)
	status, code := http.StatusBadRequest, "INVALID_PARAMETERS"
	details := map[string]interface{}{}

	switch {
	case errors.As(err, &fatal):
		status, code = http.StatusBadGateway, "METRICS_API_ERROR"
		details["status_code"] = fatal.StatusCode
		if fatal.Attempts > 0 {
			details["attempts"] = fatal.Attempts
		}
	case errors.As(err, &dataErr):
		status, code = http.StatusUnprocessableEntity, "METRICS_DATA_ERROR"
		if dataErr.Field != "" {
			details["field"] = dataErr.Field
		}
	case errors.As(err, &authErr):
		status, code = http.StatusInternalServerError, "AUTH_ERROR"
		details["mode"] = authErr.Mode
	case errors.As(err, &writeErr):
		status, code = http.StatusBadGateway, "SHEET_WRITE_ERROR"
		details["status_code"] = writeErr.StatusCode
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	}
	if len(details) == 0 {
		details = nil
	}

	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
			Details: details,
		},
	})
}
