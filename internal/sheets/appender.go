// Package sheets appends tracker rows to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"coin-tracker/internal/auth"
	"coin-tracker/internal/ledger"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// Append semantics: values are parsed as if typed by a user, and the row is
// always inserted, never written over existing data.
const (
	DefaultSheetName = "Sheet1"
	ValueInputMode   = "USER_ENTERED"
	InsertDataMode   = "INSERT_ROWS"
)

// WriteError is a rejected or failed append.
type WriteError struct {
	SheetID    string
	StatusCode int
	Err        error
}

func (e *WriteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("append to sheet %s failed with status %d: %v", e.SheetID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("append to sheet %s failed: %v", e.SheetID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Appender writes one row per call through the Sheets v4 API.
type Appender struct {
	SheetName string

	opts []option.ClientOption
	log  *zap.Logger
}

// NewAppender returns an Appender targeting sheetName (DefaultSheetName if empty).
// opts are passed to the Sheets client after the credentials option.
func NewAppender(sheetName string, logger *zap.Logger, opts ...option.ClientOption) *Appender {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Appender{SheetName: sheetName, opts: opts, log: logger.Named("sheets")}
}

// AppendRow appends row to the appender's tab in spreadsheet sheetID. It makes a single attempt.
func (a *Appender) AppendRow(ctx context.Context, sheetID string, creds *auth.Credentials, row ledger.OutputRow) error {
	if sheetID == "" {
		return &WriteError{Err: errors.New("sheet id is required")}
	}
	if creds == nil || creds.TokenSource == nil {
		return &WriteError{SheetID: sheetID, Err: errors.New("no credentials")}
	}

	opts := append([]option.ClientOption{option.WithTokenSource(creds.TokenSource)}, a.opts...)
	srv, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return &WriteError{SheetID: sheetID, Err: fmt.Errorf("create sheets client: %w", err)}
	}

	vr := &sheetsapi.ValueRange{Values: [][]interface{}{row.Values()}}
	a.log.Info("write start", zap.String("sheet_id", sheetID), zap.String("range", a.SheetName))

	resp, err := srv.Spreadsheets.Values.Append(sheetID, a.SheetName, vr).
		ValueInputOption(ValueInputMode).
		InsertDataOption(InsertDataMode).
		Context(ctx).
		Do()
	if err != nil {
		werr := &WriteError{SheetID: sheetID, Err: err}
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			werr.StatusCode = gerr.Code
		}
		a.log.Error("write failed", zap.String("sheet_id", sheetID), zap.Int("status", werr.StatusCode), zap.Error(err))
		return werr
	}

	updated := ""
	if resp.Updates != nil {
		updated = resp.Updates.UpdatedRange
	}
	a.log.Info("write end", zap.String("sheet_id", sheetID), zap.String("updated_range", updated))
	return nil
}
