package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/scrapeflow/webscrape/internal/config"
)

// tokenHeadroom is the minimum remaining lifetime before a token is
// considered stale and refreshed (§4.6).
const tokenHeadroom = 60 * time.Second

// AuthManager issues and refreshes a single bearer token shared across all
// of a job's requests, modeled on ternarybob-quaero's GitHub OAuth
// connector shape but generalized to two auth modes: a static pre-issued
// token and the OAuth2 password-credentials grant. Refresh uses
// double-checked locking so concurrent fetchers never race into two
// simultaneous token requests.
type AuthManager struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time

	mode   config.AuthType
	static string // for bearer mode, the fixed token

	conf               *oauth2.Config
	username, password string
}

// NewAuthManager builds a manager from a JobConfig's authentication block.
// Returns nil if no authentication is configured.
func NewAuthManager(auth *config.Authentication) (*AuthManager, error) {
	if auth == nil {
		return nil, nil
	}

	switch auth.Type {
	case config.AuthBearer:
		if auth.Token == "" {
			return nil, fmt.Errorf("bearer authentication requires token")
		}
		return &AuthManager{mode: config.AuthBearer, static: auth.Token}, nil

	case config.AuthPasswordCredentials:
		if auth.TokenURL == "" || auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("password authentication requires token_url, username, password")
		}
		return &AuthManager{
			mode: config.AuthPasswordCredentials,
			conf: &oauth2.Config{
				ClientID:     auth.ClientID,
				ClientSecret: auth.ClientSecret,
				Scopes:       splitScope(auth.Scope),
				Endpoint:     oauth2.Endpoint{TokenURL: auth.TokenURL},
			},
			username: auth.Username,
			password: auth.Password,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported authentication type: %s", auth.Type)
	}
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return []string{scope}
}

// Token returns a currently-valid bearer token, refreshing under lock if
// the cached one is missing or within tokenHeadroom of expiry.
func (a *AuthManager) Token(ctx context.Context) (string, error) {
	if a.mode == config.AuthBearer {
		return a.static, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && time.Until(a.expiresAt) > tokenHeadroom {
		return a.token, nil
	}

	tok, err := a.conf.PasswordCredentialsToken(ctx, a.username, a.password)
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}

	a.token = tok.AccessToken
	if tok.Expiry.IsZero() {
		a.expiresAt = time.Now().Add(1 * time.Hour)
	} else {
		a.expiresAt = tok.Expiry
	}
	return a.token, nil
}
