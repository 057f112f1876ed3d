package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bellavita/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenProvider supplies a bearer token for outbound API calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider returns a fixed long-lived token.
type StaticTokenProvider struct {
	token string
}

func NewStaticTokenProvider(token string) *StaticTokenProvider {
	return &StaticTokenProvider{token: token}
}

func (p *StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.token == "" {
		return "", fmt.Errorf("no access token configured")
	}
	return p.token, nil
}

// OAuthTokenProvider fetches tokens via the client-credentials grant and
// caches the current one until shortly before its expiry. The cache lives on
// the provider value, so two providers never share token state.
type OAuthTokenProvider struct {
	cfg    clientcredentials.Config
	margin time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current *oauth2.Token
}

func NewOAuthTokenProvider(cfg config.OAuthConfig) *OAuthTokenProvider {
	return &OAuthTokenProvider{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		margin: 30 * time.Second,
		now:    time.Now,
	}
}

func (p *OAuthTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.AccessToken != "" {
		if p.current.Expiry.IsZero() || p.now().Before(p.current.Expiry.Add(-p.margin)) {
			return p.current.AccessToken, nil
		}
	}

	token, err := p.cfg.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	p.current = token
	return token.AccessToken, nil
}

// FromConfig picks the OAuth provider when a token URL is configured and the
// static token otherwise.
func FromConfig(cfg config.WhatsAppConfig) TokenProvider {
	if cfg.OAuth.TokenURL != "" {
		return NewOAuthTokenProvider(cfg.OAuth)
	}
	return NewStaticTokenProvider(cfg.AccessToken)
}
