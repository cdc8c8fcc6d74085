// Package services implements the Spotify Web API client used to read and rewrite playlists.
//
// # Client
//
// [SpotifyClient] implements [PlaylistClient]. It is safe for concurrent use and shares a
// single [rate.Limiter] across all callers, so one process never exceeds the configured
// requests per second regardless of how many jobs run in parallel.
//
// # Pagination
//
// [FetchAllPages] follows the `next` link of paged responses until it is null or absent.
// Every page must be a JSON object with an `items` array and every item is validated by the
// caller's [ItemDecoder]. A loop that does not terminate within [MaxPages] pages fails with
// [shared.ErrPaginationOverrun].
//
// # Writes
//
// [SpotifyClient.ReplaceTracks] replaces the first 100 tracks with a PUT and appends the rest
// in 100-track POST chunks. Each response must carry a snapshot_id.
//
// # Retries
//
// Only GET requests are retried, on transport errors, 429 and 5xx responses, with exponential
// backoff that honors Retry-After. Writes are never retried because a retried POST could append
// a chunk twice.
//
// # Error Handling
//
// Upstream failures are returned as [*shared.ResponseError] carrying the status and raw body:
//   - [shared.ErrAPIRequest] : non-2xx response
//   - [shared.ErrMalformedResponse] : page or item did not have the expected shape
//   - [shared.ErrUnexpectedResponseShape] : single-object response was missing required fields
//   - [shared.ErrMissingSnapshotID] : write response had no snapshot_id
package services
