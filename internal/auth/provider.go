// Package auth supplies OAuth credentials for the Sheets API, either from a stored
// user token or from the ambient identity of the runtime.
package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// OAuth scopes accepted by the append call.
const (
	// ScopeDriveFile limits access to files the app created or opened.
	ScopeDriveFile = "https://www.googleapis.com/auth/drive.file"
	// ScopeSpreadsheets is full read/write access to spreadsheets.
	ScopeSpreadsheets = "https://www.googleapis.com/auth/spreadsheets"
)

// Credential acquisition modes.
const (
	ModeStored  = "stored"
	ModeAmbient = "ambient"
)

// Credentials is an authorized token and the source that can refresh it.
type Credentials struct {
	TokenSource oauth2.TokenSource
	Token       *oauth2.Token
	Scopes      []string
}

// Valid reports whether the current token can be used without a refresh.
func (c *Credentials) Valid() bool {
	return c != nil && c.Token.Valid()
}

// Provider produces valid credentials for the configured scopes.
type Provider interface {
	Credentials(ctx context.Context) (*Credentials, error)
}

// AuthError means no usable credential could be obtained.
type AuthError struct {
	Mode string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth (%s): %v", e.Mode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Options selects and configures a Provider.
type Options struct {
	Mode              string
	Scopes            []string
	TokenFile         string
	ClientSecretsFile string
}

// NewProvider returns the strategy named by opts.Mode.
func NewProvider(opts Options, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeSpreadsheets}
	}
	switch opts.Mode {
	case ModeStored, "":
		return NewStoredTokenProvider(opts.TokenFile, opts.ClientSecretsFile, scopes, logger), nil
	case ModeAmbient:
		return NewAmbientProvider(scopes, logger), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", opts.Mode)
	}
}
