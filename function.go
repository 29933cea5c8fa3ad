// Package cointracker exposes the sheet update as Cloud Functions: an HTTP
// function for direct calls and a CloudEvent function for Pub/Sub messages.
package cointracker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"coin-tracker/internal/api/handlers"
	"coin-tracker/internal/api/middleware"
	"coin-tracker/internal/api/models"
	"coin-tracker/internal/config"
	"coin-tracker/internal/logging"
	"coin-tracker/internal/pipeline"
	"coin-tracker/internal/trigger"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	setupOnce sync.Once
	setupErr  error
	handler   *trigger.Handler
	router    *gin.Engine
	logger    *zap.Logger
)

func init() {
	functions.HTTP("UpdateSheet", UpdateSheet)
	functions.CloudEvent("CoinEvent", CoinEvent)
}

// setup builds the pipeline once per instance.
func setup() error {
	setupOnce.Do(func() {
		cfg, err := config.Load(os.Getenv("COIN_CONFIG"))
		if err != nil {
			setupErr = fmt.Errorf("config: %w", err)
			return
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			setupErr = err
			return
		}
		p, err := pipeline.FromConfig(cfg, logger)
		if err != nil {
			setupErr = err
			return
		}
		handler = trigger.NewHandler(p, cfg.Sheet.ID, cfg.Run.ToModelParams(), logger)

		gin.SetMode(gin.ReleaseMode)
		router = gin.New()
		router.Use(middleware.Logger(logger), middleware.ErrorHandler(logger))
		h := handlers.NewUpdateHandler(handler, p)
		router.POST("/*path", h.Update)
		router.GET("/*path", h.Preview)
	})
	return setupErr
}

// UpdateSheet is the HTTP entry point. POST runs an update with the JSON
// body's parameters; GET previews the row.
func UpdateSheet(w http.ResponseWriter, r *http.Request) {
	if err := setup(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

// CoinEvent is the Pub/Sub entry point. A returned error asks the platform
// to redeliver the event.
func CoinEvent(ctx context.Context, e event.Event) error {
	if err := setup(); err != nil {
		return err
	}
	return handleCoinEvent(ctx, handler, logger, e)
}

func handleCoinEvent(ctx context.Context, h *trigger.Handler, log *zap.Logger, e event.Event) error {
	ev, err := eventFromCloudEvent(e, h.Now)
	if err != nil {
		log.Warn("unreadable event data", zap.String("event_id", e.ID()), zap.Error(err))
		return nil
	}

	status, err := h.HandleEvent(ctx, ev)
	if err != nil {
		return err
	}
	log.Info("event handled", zap.String("event_id", e.ID()), zap.String("status", status))
	return nil
}

// eventFromCloudEvent reads a Pub/Sub messagePublished event. The event time
// is preferred, then the message publishTime, then now.
func eventFromCloudEvent(e event.Event, now func() time.Time) (trigger.Event, error) {
	var msg models.PushRequest
	if err := e.DataAs(&msg); err != nil {
		return trigger.Event{}, err
	}

	ts := e.Time()
	if ts.IsZero() {
		if published, err := time.Parse(time.RFC3339Nano, msg.Message.PublishTime); err == nil {
			ts = published
		} else {
			ts = now()
		}
	}

	id := e.ID()
	if msg.Message.MessageID != "" {
		id = msg.Message.MessageID
	}
	return trigger.Event{ID: id, Timestamp: ts, Data: msg.Message.Data}, nil
}
