package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/services"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultVerifierTTL bounds how long a user has to finish authorizing.
const DefaultVerifierTTL = 15 * time.Minute

// Authorizer runs the PKCE authorization code flow.
type Authorizer struct {
	oauth      *oauth2.Config
	verifiers  *VerifierStore
	ttl        time.Duration
	client     services.PlaylistClient
	store      models.CredentialStore
	locks      *shared.KeyedMutex
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// NewAuthorizer creates an [Authorizer]. A ttl of zero or less uses [DefaultVerifierTTL].
func NewAuthorizer(
	config *oauth2.Config,
	verifiers *VerifierStore,
	ttl time.Duration,
	client services.PlaylistClient,
	store models.CredentialStore,
	locks *shared.KeyedMutex,
	httpClient *http.Client,
	logger *log.Logger,
) *Authorizer {
	if ttl <= 0 {
		ttl = DefaultVerifierTTL
	}
	return &Authorizer{
		oauth:      config,
		verifiers:  verifiers,
		ttl:        ttl,
		client:     client,
		store:      store,
		locks:      userLocks(locks),
		httpClient: httpClient,
		logger:     shared.WithLogger(logger, "component", "authorizer"),
		now:        time.Now,
	}
}

// Start creates a verifier and returns the authorize URL and the handle the callback must present.
func (a *Authorizer) Start(ctx context.Context) (authURL, handle string, err error) {
	secret, err := shared.RandomString(VerifierLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate verifier: %w", err)
	}

	handle = shared.GenerateID()
	a.verifiers.Put(handle, Verifier{Secret: secret, Expiry: a.now().Add(a.ttl)})

	authURL = a.oauth.AuthCodeURL(handle, oauth2.S256ChallengeOption(secret))
	return authURL, handle, nil
}

// Complete consumes the verifier for handle, exchanges code for tokens and upserts the
// user's credential.
//
// The verifier is removed before any other check, so a handle never works twice.
func (a *Authorizer) Complete(ctx context.Context, handle, code string) (*models.Credential, error) {
	v, ok := a.verifiers.Take(handle)
	if !ok || handle == "" {
		return nil, shared.ErrNoVerifier
	}
	if !v.Expiry.After(a.now()) {
		return nil, shared.ErrVerifierExpired
	}
	if code == "" {
		return nil, shared.ErrNoCode
	}

	tok, err := a.oauth.Exchange(withHTTPClient(ctx, a.httpClient), code, oauth2.VerifierOption(v.Secret))
	if err != nil {
		return nil, tokenError(shared.ErrAuthFailed, err)
	}
	if tok.AccessToken == "" || tok.Expiry.IsZero() {
		return nil, fmt.Errorf("%w: token response had no access token or expiry", shared.ErrAuthFailed)
	}

	profile, err := a.client.UserProfile(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch profile: %w", shared.ErrAuthFailed, err)
	}

	unlock := a.locks.Lock(profile.ID)
	defer unlock()

	c, err := a.store.Get(ctx, profile.ID)
	switch {
	case errors.Is(err, shared.ErrUnknownUser):
		c = &models.Credential{UserID: profile.ID}
	case err != nil:
		return nil, err
	}

	c.Email = profile.Email
	c.AccessToken = tok.AccessToken
	c.AccessTokenExpiry = tok.Expiry
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}

	if err := a.store.Upsert(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	a.logger.Info("user authorized", "user", c.UserID)
	return c, nil
}

// Discard drops the verifier for handle without completing the flow. It reports whether one
// was held.
func (a *Authorizer) Discard(handle string) bool {
	if handle == "" {
		return false
	}
	_, ok := a.verifiers.Take(handle)
	return ok
}

// Sweep drops expired verifiers.
func (a *Authorizer) Sweep() int {
	n := a.verifiers.Sweep(a.now())
	if n > 0 {
		a.logger.Debug("swept expired verifiers", "count", n)
	}
	return n
}
