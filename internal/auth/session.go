package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
)

const (
	DefaultSessionLifetime = 6 * time.Hour
	DefaultSessionGrace    = 5 * time.Minute
)

// Session is an authenticated browser session. Token and Expiry are the values the
// client must store, which change whenever the session rotates.
type Session struct {
	UserID string
	Token  string
	Expiry time.Time
}

// SessionAuthenticator issues and validates session tokens.
type SessionAuthenticator struct {
	store       models.CredentialStore
	lifetime    time.Duration
	grace       time.Duration
	rotateAfter time.Duration
	locks       *shared.KeyedMutex
	logger      *log.Logger
	now         func() time.Time
}

// NewSessionAuthenticator creates a [SessionAuthenticator] from cfg.
//
// A zero RotateAfter rotates the token on every successful check. Each check reads and rewrites
// the user's row under locks, so concurrent requests rotate one after another.
func NewSessionAuthenticator(store models.CredentialStore, locks *shared.KeyedMutex, cfg shared.SessionConfig, logger *log.Logger) *SessionAuthenticator {
	s := &SessionAuthenticator{
		store:       store,
		lifetime:    cfg.Lifetime,
		grace:       cfg.Grace,
		rotateAfter: cfg.RotateAfter,
		locks:       userLocks(locks),
		logger:      shared.WithLogger(logger, "component", "sessions"),
		now:         time.Now,
	}
	if s.lifetime <= 0 {
		s.lifetime = DefaultSessionLifetime
	}
	if s.grace < 0 || s.grace >= s.lifetime {
		s.grace = DefaultSessionGrace
	}
	return s
}

// Check validates token for userID and returns the session, rotated when due.
//
// The current token is accepted until its expiry. The previous token is accepted only while the
// current token was issued less than the grace window ago.
func (s *SessionAuthenticator) Check(ctx context.Context, token, userID string) (*Session, error) {
	if token == "" || userID == "" {
		return nil, shared.ErrUnauthenticated
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	c, err := s.store.Get(ctx, userID)
	if errors.Is(err, shared.ErrUnknownUser) {
		return nil, shared.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if c.SessionToken == "" || c.SessionTokenExpiry.IsZero() {
		return nil, shared.ErrUnauthenticated
	}

	now := s.now()
	current := token == c.SessionToken && c.SessionTokenExpiry.After(now)
	previous := c.SessionTokenPrevious != "" && token == c.SessionTokenPrevious &&
		!c.SessionTokenExpiry.Before(now.Add(s.lifetime-s.grace))

	switch {
	case previous:
		s.logger.Debug("accepted previous session token", "user", userID)
	case current:
		issued := c.SessionTokenExpiry.Add(-s.lifetime)
		if s.rotateAfter > 0 && now.Sub(issued) < s.rotateAfter {
			return &Session{UserID: userID, Token: c.SessionToken, Expiry: c.SessionTokenExpiry}, nil
		}
	default:
		return nil, shared.ErrUnauthenticated
	}

	return s.rotate(ctx, c, now)
}

// Issue starts a new session for userID, keeping any unexpired token in the grace slot.
func (s *SessionAuthenticator) Issue(ctx context.Context, userID string) (*Session, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.rotate(ctx, c, s.now())
}

// Logout clears the session fields of userID. OAuth tokens are left in place.
func (s *SessionAuthenticator) Logout(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.store.UpdateSession(ctx, userID, "", "", time.Time{}); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info("user logged out", "user", userID)
	return nil
}

// rotate issues a fresh token. The old current token moves to the previous slot only if it
// has not expired.
func (s *SessionAuthenticator) rotate(ctx context.Context, c *models.Credential, now time.Time) (*Session, error) {
	previous := ""
	if c.SessionToken != "" && c.SessionTokenExpiry.After(now) {
		previous = c.SessionToken
	}

	sess := &Session{UserID: c.UserID, Token: shared.GenerateID(), Expiry: now.Add(s.lifetime)}
	if err := s.store.UpdateSession(ctx, c.UserID, sess.Token, previous, sess.Expiry); err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	return sess, nil
}
