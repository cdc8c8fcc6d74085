// package services implements clients for the upstream HTTP APIs the shuffle engine depends on.
package services

import (
	"context"

	"github.com/desertthunder/dailyshuffle/internal/models"
)

// PlaylistClient is the subset of the Spotify Web API used by the auth flow and the job runner.
//
// Every method takes the caller's bearer access token; the client holds no user credentials.
type PlaylistClient interface {
	// UserProfile returns the profile of the token's owner.
	UserProfile(ctx context.Context, token string) (*models.UserProfile, error)

	// UserPlaylists returns every playlist the token's owner follows or owns.
	UserPlaylists(ctx context.Context, token string) ([]models.Playlist, error)

	// Playlist retrieves a single playlist's metadata.
	Playlist(ctx context.Context, token, playlistID string) (*models.Playlist, error)

	// PlaylistTrackURIs returns the track URIs of a playlist in playlist order.
	PlaylistTrackURIs(ctx context.Context, token, playlistID string) ([]string, error)

	// ReplaceTracks overwrites a playlist's contents with uris and returns the final snapshot id.
	ReplaceTracks(ctx context.Context, token, playlistID string, uris []string) (string, error)

	// CreatePlaylist creates a playlist owned by ownerID.
	CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (*models.Playlist, error)
}

var _ PlaylistClient = (*SpotifyClient)(nil)
