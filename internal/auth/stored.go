package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Authorizer obtains a fresh token through user consent.
type Authorizer interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// StoredTokenProvider loads a user token persisted on disk, refreshing or
// re-authorizing it when needed. New tokens are written back to TokenFile.
type StoredTokenProvider struct {
	TokenFile         string
	ClientSecretsFile string
	Scopes            []string

	// Authorizer runs when no token is stored. Nil disables the interactive step.
	Authorizer Authorizer

	log *zap.Logger
}

func NewStoredTokenProvider(tokenFile, clientSecretsFile string, scopes []string, logger *zap.Logger) *StoredTokenProvider {
	if tokenFile == "" {
		tokenFile = "token.json"
	}
	if clientSecretsFile == "" {
		clientSecretsFile = "credentials.json"
	}
	return &StoredTokenProvider{
		TokenFile:         tokenFile,
		ClientSecretsFile: clientSecretsFile,
		Scopes:            scopes,
		Authorizer:        &LoopbackAuthorizer{Out: os.Stderr},
		log:               logger.Named("auth"),
	}
}

func (p *StoredTokenProvider) Credentials(ctx context.Context) (*Credentials, error) {
	tok, err := LoadToken(p.TokenFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, p.fail(fmt.Errorf("read token: %w", err))
	}

	cfg, cfgErr := p.config()
	if tok.Valid() {
		p.log.Debug("using stored token", zap.String("file", p.TokenFile))
		var ts oauth2.TokenSource = oauth2.StaticTokenSource(tok)
		if cfgErr == nil {
			ts = cfg.TokenSource(ctx, tok)
		}
		return p.credentials(ts, tok), nil
	}
	if cfgErr != nil {
		return nil, p.fail(cfgErr)
	}

	if tok != nil && tok.RefreshToken != "" {
		p.log.Info("refreshing stored token", zap.Time("expired", tok.Expiry))
		ts := cfg.TokenSource(ctx, tok)
		fresh, err := ts.Token()
		if err != nil {
			return nil, p.fail(fmt.Errorf("refresh token: %w", err))
		}
		if err := SaveToken(p.TokenFile, fresh); err != nil {
			return nil, p.fail(err)
		}
		return p.credentials(ts, fresh), nil
	}

	if p.Authorizer == nil {
		return nil, p.fail(errors.New("no stored token and interactive authorization is disabled"))
	}
	p.log.Info("no usable token, starting authorization flow")
	fresh, err := p.Authorizer.Authorize(ctx, cfg)
	if err != nil {
		return nil, p.fail(fmt.Errorf("authorize: %w", err))
	}
	if err := SaveToken(p.TokenFile, fresh); err != nil {
		return nil, p.fail(err)
	}
	p.log.Info("saved new token", zap.String("file", p.TokenFile))
	return p.credentials(cfg.TokenSource(ctx, fresh), fresh), nil
}

func (p *StoredTokenProvider) config() (*oauth2.Config, error) {
	raw, err := os.ReadFile(p.ClientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, p.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}
	return cfg, nil
}

func (p *StoredTokenProvider) credentials(ts oauth2.TokenSource, tok *oauth2.Token) *Credentials {
	saving := &savingTokenSource{
		src:  ts,
		path: p.TokenFile,
		last: tok.AccessToken,
		log:  p.log,
	}
	return &Credentials{
		TokenSource: oauth2.ReuseTokenSource(tok, saving),
		Token:       tok,
		Scopes:      p.Scopes,
	}
}

// savingTokenSource writes every new access token from src back to path, so
// a refresh that happens after Credentials returns survives the process.
type savingTokenSource struct {
	src  oauth2.TokenSource
	path string
	log  *zap.Logger

	mu   sync.Mutex
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	if err := SaveToken(s.path, tok); err != nil {
		// The token is still usable for this run.
		s.log.Warn("could not persist refreshed token", zap.String("file", s.path), zap.Error(err))
		return tok, nil
	}
	s.last = tok.AccessToken
	s.log.Info("persisted refreshed token", zap.String("file", s.path))
	return tok, nil
}

func (p *StoredTokenProvider) fail(err error) error {
	p.log.Error("credentials unavailable", zap.Error(err))
	return &AuthError{Mode: ModeStored, Err: err}
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	return &tok, nil
}

// SaveToken persists tok with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
