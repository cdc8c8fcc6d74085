// Spotify Web API implementation of [PlaylistClient]
//
// Response shapes based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"golang.org/x/time/rate"
)

const (
	// MaxPages bounds [FetchAllPages]; a 50-item page size allows 15,000 items.
	MaxPages = 300
	// PageSize is the page size requested from paged endpoints.
	PageSize = 50
	// ChunkSize is the maximum number of URIs per playlist write.
	ChunkSize = 100

	defaultRetryBase = 500 * time.Millisecond
	maxRetryAfter    = 30 * time.Second
	maxBodyBytes     = 8 << 20
)

// ItemDecoder validates and converts one raw page item.
//
// Returning keep=false skips the item; a non-nil error marks the page malformed.
type ItemDecoder[T any] func(raw json.RawMessage) (item T, keep bool, err error)

// SpotifyClient talks to the Spotify Web API with a shared rate limiter and bounded retries.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryBase  time.Duration
	logger     *log.Logger
}

// ClientOption configures a [SpotifyClient].
type ClientOption func(*SpotifyClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(s *SpotifyClient) { s.httpClient = c }
}

// WithRetryBackoff sets the base delay of the exponential retry backoff.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(s *SpotifyClient) { s.retryBase = d }
}

// NewSpotifyClient creates a client from cfg.
func NewSpotifyClient(cfg shared.SpotifyConfig, logger *log.Logger, opts ...ClientOption) *SpotifyClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	c := &SpotifyClient{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: retries,
		retryBase:  defaultRetryBase,
		logger:     shared.WithLogger(logger, "component", "spotify"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pageEnvelope struct {
	Items *[]json.RawMessage `json:"items"`
	Next  json.RawMessage    `json:"next"`
}

// FetchAllPages performs authenticated GETs starting at pageURL and follows `next` links,
// decoding every item with decode.
func FetchAllPages[T any](ctx context.Context, c *SpotifyClient, token, pageURL string, decode ItemDecoder[T]) ([]T, error) {
	var result []T
	next := pageURL

	for page := 0; next != ""; page++ {
		if page >= MaxPages {
			return nil, fmt.Errorf("%w: more than %d pages starting at %s", shared.ErrPaginationOverrun, MaxPages, pageURL)
		}

		body, err := c.do(ctx, http.MethodGet, next, token, nil)
		if err != nil {
			return nil, err
		}

		var env pageEnvelope
		if err := json.Unmarshal(body, &env); err != nil || env.Items == nil {
			return nil, shared.NewResponseError(shared.ErrMalformedResponse, 0, body)
		}

		for _, raw := range *env.Items {
			item, keep, err := decode(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", shared.NewResponseError(shared.ErrMalformedResponse, 0, raw), err)
			}
			if keep {
				result = append(result, item)
			}
		}

		next, err = nextLink(env.Next)
		if err != nil {
			return nil, shared.NewResponseError(shared.ErrMalformedResponse, 0, body)
		}
	}

	return result, nil
}

// nextLink decodes a `next` value that may be absent, null or a URL string.
func nextLink(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (c *SpotifyClient) UserProfile(ctx context.Context, token string) (*models.UserProfile, error) {
	body, err := c.do(ctx, http.MethodGet, c.baseURL+"/me", token, nil)
	if err != nil {
		return nil, err
	}

	var p models.UserProfile
	if err := json.Unmarshal(body, &p); err != nil || p.ID == "" {
		return nil, shared.NewResponseError(shared.ErrUnexpectedResponseShape, 0, body)
	}
	return &p, nil
}

type spotifyPlaylist struct {
	ID           *string `json:"id"`
	Name         *string `json:"name"`
	SnapshotID   string  `json:"snapshot_id"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	Tracks *struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

func (p spotifyPlaylist) valid() bool {
	return p.ID != nil && *p.ID != "" && p.Name != nil
}

func (p spotifyPlaylist) model() models.Playlist {
	pl := models.Playlist{
		ID:         *p.ID,
		Name:       *p.Name,
		SnapshotID: p.SnapshotID,
		URL:        p.ExternalURLs.Spotify,
	}
	if p.Tracks != nil {
		pl.TrackCount = p.Tracks.Total
	}
	return pl
}

func decodePlaylist(raw json.RawMessage) (models.Playlist, bool, error) {
	var p spotifyPlaylist
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Playlist{}, false, err
	}
	if !p.valid() {
		return models.Playlist{}, false, errors.New("playlist item is missing id or name")
	}
	return p.model(), true, nil
}

// UserPlaylists retrieves all of the current user's playlists.
func (c *SpotifyClient) UserPlaylists(ctx context.Context, token string) ([]models.Playlist, error) {
	endpoint := fmt.Sprintf("%s/me/playlists?limit=%d", c.baseURL, PageSize)
	return FetchAllPages(ctx, c, token, endpoint, decodePlaylist)
}

// Playlist retrieves a playlist's metadata by id.
func (c *SpotifyClient) Playlist(ctx context.Context, token, playlistID string) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("%s/playlists/%s?fields=%s", c.baseURL, url.PathEscape(playlistID),
		url.QueryEscape("id,name,snapshot_id,external_urls,tracks(total)"))

	body, err := c.do(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, err
	}

	var p spotifyPlaylist
	if err := json.Unmarshal(body, &p); err != nil || !p.valid() {
		return nil, shared.NewResponseError(shared.ErrUnexpectedResponseShape, 0, body)
	}
	pl := p.model()
	return &pl, nil
}

type playlistItem struct {
	Track json.RawMessage `json:"track"`
}

// PlaylistTrackURIs returns the URIs of every track in a playlist, in order.
//
// Items whose track is null or has no uri (unavailable local files, removed episodes) are
// skipped with a warning. An item without a track key is malformed.
func (c *SpotifyClient) PlaylistTrackURIs(ctx context.Context, token, playlistID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d&fields=%s", c.baseURL, url.PathEscape(playlistID),
		PageSize, url.QueryEscape("next,items(track(uri))"))

	skipped := 0
	uris, err := FetchAllPages(ctx, c, token, endpoint, func(raw json.RawMessage) (string, bool, error) {
		var item playlistItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return "", false, err
		}
		if len(item.Track) == 0 {
			return "", false, errors.New("playlist item has no track field")
		}
		if string(item.Track) == "null" {
			skipped++
			return "", false, nil
		}

		var track struct {
			URI *string `json:"uri"`
		}
		if err := json.Unmarshal(item.Track, &track); err != nil {
			return "", false, err
		}
		if track.URI == nil || *track.URI == "" {
			skipped++
			return "", false, nil
		}
		return *track.URI, true, nil
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		c.logger.Warn("skipped playlist items without a track uri", "playlist", playlistID, "skipped", skipped)
	}
	return uris, nil
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// ReplaceTracks replaces the playlist contents with uris.
//
// The first [ChunkSize] URIs are written with a PUT that clears the playlist and the rest are
// appended with POSTs. Every response must carry a snapshot_id; the last one is returned.
func (c *SpotifyClient) ReplaceTracks(ctx context.Context, token, playlistID string, uris []string) (string, error) {
	endpoint := fmt.Sprintf("%s/playlists/%s/tracks", c.baseURL, url.PathEscape(playlistID))

	var snapshot string
	for start := 0; start == 0 || start < len(uris); start += ChunkSize {
		end := min(start+ChunkSize, len(uris))
		chunk := uris[start:end]
		if chunk == nil {
			chunk = []string{}
		}

		method := http.MethodPost
		if start == 0 {
			method = http.MethodPut
		}

		body, err := c.do(ctx, method, endpoint, token, map[string][]string{"uris": chunk})
		if err != nil {
			return "", fmt.Errorf("failed to write tracks %d-%d: %w", start, end, err)
		}

		var resp snapshotResponse
		if err := json.Unmarshal(body, &resp); err != nil || resp.SnapshotID == "" {
			return "", shared.NewResponseError(shared.ErrMissingSnapshotID, 0, body)
		}
		snapshot = resp.SnapshotID
	}

	return snapshot, nil
}

// CreatePlaylist creates a new playlist for ownerID.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, token, ownerID, name, description string, public bool) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("%s/users/%s/playlists", c.baseURL, url.PathEscape(ownerID))
	payload := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	body, err := c.do(ctx, http.MethodPost, endpoint, token, payload)
	if err != nil {
		return nil, err
	}

	var p spotifyPlaylist
	if err := json.Unmarshal(body, &p); err != nil || !p.valid() {
		return nil, shared.NewResponseError(shared.ErrUnexpectedResponseShape, 0, body)
	}
	pl := p.model()
	return &pl, nil
}

// do performs an authenticated request and returns the body of a 2xx response.
//
// GETs are retried up to maxRetries attempts; other methods are sent exactly once.
func (c *SpotifyClient) do(ctx context.Context, method, endpoint, token string, payload any) ([]byte, error) {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.maxRetries
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			if err := sleepContext(ctx, c.backoff(attempt, lastErr)); err != nil {
				return nil, err
			}
			c.logger.Debug("retrying request", "method", method, "url", endpoint, "attempt", attempt+1, "cause", lastErr)
		}

		body, retry, err := c.send(ctx, method, endpoint, token, data)
		if err == nil {
			return body, nil
		}
		if !retry || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// retryableError records the server-requested delay of a 429/5xx response.
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func (c *SpotifyClient) send(ctx context.Context, method, endpoint, token string, data []byte) ([]byte, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: failed to read response body: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := shared.NewResponseError(shared.ErrAPIRequest, resp.StatusCode, body)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, true, &retryableError{err: rerr, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
		}
		return nil, false, rerr
	}

	return body, false, nil
}

func (c *SpotifyClient) backoff(attempt int, cause error) time.Duration {
	var re *retryableError
	if errors.As(cause, &re) && re.retryAfter > 0 {
		return re.retryAfter
	}
	return c.retryBase << (attempt - 1)
}

// parseRetryAfter reads a delay-seconds Retry-After header, capped at maxRetryAfter.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
