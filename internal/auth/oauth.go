package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/dailyshuffle/internal/shared"
	"golang.org/x/oauth2"
)

// Scopes requested during authorization.
var Scopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-modify-public",
	"playlist-modify-private",
	"playlist-read-private",
}

// NewOAuthConfig builds the Spotify OAuth client configuration.
//
// Client credentials go in a Basic auth header, which the token endpoint requires for refreshes.
func NewOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// withHTTPClient makes oauth2 token requests use c instead of [http.DefaultClient].
func withHTTPClient(ctx context.Context, c *http.Client) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c)
}

// tokenError wraps kind around a token endpoint failure, keeping the upstream body.
func tokenError(kind error, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return fmt.Errorf("%w: %w", kind, shared.NewResponseError(shared.ErrAPIRequest, status, rerr.Body))
	}
	return fmt.Errorf("%w: %w", kind, err)
}
