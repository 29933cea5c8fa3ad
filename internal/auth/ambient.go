package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// FindFunc discovers credentials from the environment.
type FindFunc func(ctx context.Context, scopes ...string) (*google.Credentials, error)

// AmbientProvider uses Application Default Credentials: the metadata server on
// Cloud Functions/Run, GOOGLE_APPLICATION_CREDENTIALS, or gcloud's user login.
type AmbientProvider struct {
	Scopes []string
	Find   FindFunc

	log *zap.Logger
}

func NewAmbientProvider(scopes []string, logger *zap.Logger) *AmbientProvider {
	return &AmbientProvider{
		Scopes: scopes,
		Find:   google.FindDefaultCredentials,
		log:    logger.Named("auth"),
	}
}

func (p *AmbientProvider) Credentials(ctx context.Context) (*Credentials, error) {
	creds, err := p.Find(ctx, p.Scopes...)
	if err != nil {
		return nil, p.fail(fmt.Errorf("find default credentials: %w", err))
	}
	if creds == nil || creds.TokenSource == nil {
		return nil, p.fail(errors.New("default credentials have no token source"))
	}

	// Token refreshes through the credential's own mechanism when expired.
	tok, err := creds.TokenSource.Token()
	if err != nil {
		return nil, p.fail(fmt.Errorf("fetch token: %w", err))
	}
	p.log.Debug("using ambient credentials", zap.String("project", creds.ProjectID), zap.Time("expiry", tok.Expiry))

	return &Credentials{
		TokenSource: oauth2.ReuseTokenSource(tok, creds.TokenSource),
		Token:       tok,
		Scopes:      p.Scopes,
	}, nil
}

func (p *AmbientProvider) fail(err error) error {
	p.log.Error("credentials unavailable", zap.Error(err))
	return &AuthError{Mode: ModeAmbient, Err: err}
}
