// package models defines the data model for the playlist shuffling service
package models

import (
	"context"
	"fmt"
	"time"
)

// Credential holds the OAuth and session state for one user, keyed by the Spotify user id.
//
// Optional fields use their zero value for "absent".
type Credential struct {
	UserID               string
	Email                string
	AccessToken          string
	AccessTokenExpiry    time.Time
	RefreshToken         string
	SessionToken         string
	SessionTokenPrevious string
	SessionTokenExpiry   time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate checks the credential invariants: a user id is present, and an access token
// is never stored without its expiry.
func (c *Credential) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("credential user id is required")
	}
	if c.AccessToken != "" && c.AccessTokenExpiry.IsZero() {
		return fmt.Errorf("credential %s has an access token without an expiry", c.UserID)
	}
	return nil
}

// AccessTokenValidAt reports whether the stored access token is still usable at t.
func (c *Credential) AccessTokenValidAt(t time.Time) bool {
	return c.AccessToken != "" && !c.AccessTokenExpiry.IsZero() && c.AccessTokenExpiry.After(t)
}

// ClearSession removes all browser session state, leaving OAuth fields untouched.
func (c *Credential) ClearSession() {
	c.SessionToken = ""
	c.SessionTokenPrevious = ""
	c.SessionTokenExpiry = time.Time{}
}

// Job shuffles the tracks of SourcePlaylistID into DestinationPlaylistID.
//
// DestinationPlaylistID is the unique key.
type Job struct {
	OwnerID               string    `json:"ownerId"`
	SourcePlaylistID      string    `json:"sourcePlaylistId"`
	DestinationPlaylistID string    `json:"destinationPlaylistId"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// Validate checks that all identifiers are present.
func (j *Job) Validate() error {
	switch {
	case j.OwnerID == "":
		return fmt.Errorf("job owner id is required")
	case j.SourcePlaylistID == "":
		return fmt.Errorf("job source playlist id is required")
	case j.DestinationPlaylistID == "":
		return fmt.Errorf("job destination playlist id is required")
	}
	return nil
}

// JobWithNames is a [Job] annotated with playlist display names.
type JobWithNames struct {
	Job
	SourceName      string `json:"sourceName"`
	DestinationName string `json:"destinationName"`
}

// UserProfile is the subset of the Spotify profile the service consumes.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Playlist is the subset of a Spotify playlist object the service consumes.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SnapshotID string `json:"snapshot_id"`
	URL        string `json:"url"`
	TrackCount int    `json:"track_count"`
}

// CredentialStore persists credentials keyed by user id.
type CredentialStore interface {
	// Get returns the credential for userID, or an error wrapping [shared.ErrUnknownUser].
	Get(ctx context.Context, userID string) (*Credential, error)
	// Upsert inserts or fully replaces the credential.
	Upsert(ctx context.Context, c *Credential) error
	// UpdateTokens persists the OAuth token fields only.
	UpdateTokens(ctx context.Context, userID, accessToken string, expiry time.Time, refreshToken string) error
	// UpdateSession persists the session token fields only.
	UpdateSession(ctx context.Context, userID, token, previous string, expiry time.Time) error
}

// JobStore persists jobs keyed by destination playlist id.
type JobStore interface {
	Get(ctx context.Context, destinationID string) (*Job, error)
	Upsert(ctx context.Context, j *Job) error
	Delete(ctx context.Context, destinationID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*Job, error)
	List(ctx context.Context) ([]*Job, error)
}
