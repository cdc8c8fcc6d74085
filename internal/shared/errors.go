package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential and token errors
	ErrUnknownUser      = fmt.Errorf("unknown user")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")

	// PKCE authorization flow errors
	ErrNoVerifier       = fmt.Errorf("no verifier, maybe your session expired")
	ErrVerifierExpired  = fmt.Errorf("verifier expired")
	ErrNoCode           = fmt.Errorf("callback is missing the authorization code")
	ErrAuthFailed       = fmt.Errorf("authorization failed")
	ErrUnauthenticated  = fmt.Errorf("unauthenticated")
	ErrServiceNotConfig = fmt.Errorf("service not configured")

	// Upstream API errors
	ErrAPIRequest              = fmt.Errorf("API request failed")
	ErrMalformedResponse       = fmt.Errorf("malformed response")
	ErrUnexpectedResponseShape = fmt.Errorf("unexpected response shape")
	ErrMissingSnapshotID       = fmt.Errorf("response did not contain a snapshot_id")
	ErrPaginationOverrun       = fmt.Errorf("pagination did not terminate")

	// Job errors
	ErrJobNotFound = fmt.Errorf("job not found")
	ErrWrongOwner  = fmt.Errorf("job belongs to another user")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// ResponseError carries the raw upstream payload of a failed or malformed API call.
//
// It unwraps to Kind, so callers match on the sentinel with [errors.Is].
type ResponseError struct {
	Kind   error
	Status int
	Body   []byte
}

// NewResponseError creates a [ResponseError] of the given kind.
func NewResponseError(kind error, status int, body []byte) *ResponseError {
	return &ResponseError{Kind: kind, Status: status, Body: body}
}

func (e *ResponseError) Error() string {
	body := string(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if e.Status != 0 {
		return fmt.Sprintf("%v: status %d, body: %s", e.Kind, e.Status, body)
	}
	return fmt.Sprintf("%v: body: %s", e.Kind, body)
}

func (e *ResponseError) Unwrap() error {
	return e.Kind
}
