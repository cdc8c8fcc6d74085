package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultExpiryWindow is how long a stored access token must remain valid to be reused.
const DefaultExpiryWindow = 5 * time.Minute

// TokenManager derives a currently valid access token for a user, refreshing and persisting
// rotated tokens when the stored one is about to expire.
type TokenManager struct {
	store      models.CredentialStore
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
	locks      *shared.KeyedMutex
	now        func() time.Time
}

// NewTokenManager creates a [TokenManager]. httpClient may be nil.
//
// locks guards each user's credential row and should be shared with the [SessionAuthenticator]
// and [Authorizer] over the same store. A nil locks gives the manager its own set.
func NewTokenManager(
	store models.CredentialStore,
	locks *shared.KeyedMutex,
	config *oauth2.Config,
	httpClient *http.Client,
	logger *log.Logger,
) *TokenManager {
	return &TokenManager{
		store:      store,
		oauth:      config,
		httpClient: httpClient,
		locks:      userLocks(locks),
		logger:     shared.WithLogger(logger, "component", "tokens"),
		now:        time.Now,
	}
}

// ValidAccessToken returns an access token for userID that stays valid for at least window.
//
// A window of zero or less uses [DefaultExpiryWindow].
func (m *TokenManager) ValidAccessToken(ctx context.Context, userID string, window time.Duration) (string, error) {
	if window <= 0 {
		window = DefaultExpiryWindow
	}

	unlock := m.locks.Lock(userID)
	defer unlock()

	c, err := m.store.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	if c.AccessTokenValidAt(m.now().Add(window)) {
		return c.AccessToken, nil
	}

	if c.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s has no refresh token", shared.ErrNotAuthenticated, userID)
	}

	return m.refresh(ctx, c)
}

func (m *TokenManager) refresh(ctx context.Context, c *models.Credential) (string, error) {
	m.logger.Debug("refreshing access token", "user", c.UserID)

	src := m.oauth.TokenSource(withHTTPClient(ctx, m.httpClient), &oauth2.Token{RefreshToken: c.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		m.logger.Warn("token refresh failed", "user", c.UserID, "error", err)
		return "", tokenError(shared.ErrRefreshFailed, err)
	}
	if tok.AccessToken == "" || tok.Expiry.IsZero() {
		return "", fmt.Errorf("%w: token response for %s had no access token or expiry", shared.ErrRefreshFailed, c.UserID)
	}

	// oauth2 keeps the old refresh token when the provider does not send a new one.
	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = c.RefreshToken
	}

	if err := m.store.UpdateTokens(ctx, c.UserID, tok.AccessToken, tok.Expiry, refreshToken); err != nil {
		m.logger.Error("failed to persist refreshed tokens", "user", c.UserID, "error", err)
		return "", fmt.Errorf("failed to persist refreshed tokens for %s: %w", c.UserID, err)
	}

	if refreshToken != c.RefreshToken {
		m.logger.Debug("refresh token rotated", "user", c.UserID)
	}
	return tok.AccessToken, nil
}

// IsAuthError reports whether err means the user must authorize again.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrRefreshFailed) || errors.Is(err, shared.ErrUnknownUser)
}

func userLocks(l *shared.KeyedMutex) *shared.KeyedMutex {
	if l == nil {
		return &shared.KeyedMutex{}
	}
	return l
}
