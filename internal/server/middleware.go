package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/auth"
	"github.com/desertthunder/dailyshuffle/internal/shared"
)

type contextKey int

const sessionKey contextKey = iota

// SessionChecker validates and rotates browser sessions. [auth.SessionAuthenticator] implements it.
type SessionChecker interface {
	Check(ctx context.Context, token, userID string) (*auth.Session, error)
	Issue(ctx context.Context, userID string) (*auth.Session, error)
	Logout(ctx context.Context, userID string) error
}

// SessionFromContext returns the session attached by [RequireSession] or [OptionalSession].
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*auth.Session)
	return s, ok
}

// RequireSession rejects requests without a valid session cookie pair with 401.
//
// A valid session's cookies are rewritten, since the token may have rotated.
func RequireSession(sessions SessionChecker, secure bool, logger *log.Logger) Middleware {
	return sessionMiddleware(sessions, secure, true, logger)
}

// OptionalSession attaches the session when the cookies are valid and passes the request on either way.
func OptionalSession(sessions SessionChecker, secure bool, logger *log.Logger) Middleware {
	return sessionMiddleware(sessions, secure, false, logger)
}

func sessionMiddleware(sessions SessionChecker, secure, required bool, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, userID := readSessionCookies(r)

			sess, err := sessions.Check(r.Context(), token, userID)
			if err != nil {
				if token != "" || userID != "" {
					logger.Debug("rejected session", "uid", userID, "error", err)
					clearSessionCookies(w, secure)
				}
				if required {
					writeError(w, logger, err)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			setSessionCookies(w, sess, secure)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs the method, path, status and duration of every request.
func RequestLogger(logger *log.Logger) Middleware {
	logger = shared.WithLogger(logger, "component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

// Recoverer turns a handler panic into a 500 response.
func Recoverer(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("panic in handler", "path", r.URL.Path, "panic", v)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
