package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dailyshuffle/internal/auth"
	"github.com/desertthunder/dailyshuffle/internal/models"
	"github.com/desertthunder/dailyshuffle/internal/shared"
	"github.com/desertthunder/dailyshuffle/internal/tasks"
)

const healthTimeout = 2 * time.Second

// AuthFlow runs the PKCE authorization flow. [auth.Authorizer] implements it.
type AuthFlow interface {
	Start(ctx context.Context) (authURL, handle string, err error)
	Complete(ctx context.Context, handle, code string) (*models.Credential, error)
	Discard(handle string) bool
}

// JobManager manages a user's shuffle jobs. [tasks.JobService] implements it.
type JobManager interface {
	CreateJob(ctx context.Context, userID, sourceID, destinationName string) (*models.Job, error)
	UpdateJobSource(ctx context.Context, userID, destinationID, sourceID string) (*models.Job, error)
	DeleteJob(ctx context.Context, userID, destinationID string) error
	UserJobs(ctx context.Context, userID string) (*tasks.UserJobs, error)
	UserPlaylists(ctx context.Context, userID string) ([]models.Playlist, error)
}

// PassRunner runs a shuffle pass over every job. [tasks.Runner] implements it.
type PassRunner interface {
	RunAll(ctx context.Context) (*tasks.RunResult, error)
}

// Pinger reports whether the database is reachable. [*sql.DB] implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// API serves the session, job and run endpoints.
type API struct {
	flow        AuthFlow
	sessions    SessionChecker
	jobs        JobManager
	runner      PassRunner
	verifierTTL time.Duration
	secure      bool
	logger      *log.Logger
	now         func() time.Time
}

// NewAPI creates an [API].
func NewAPI(
	flow AuthFlow,
	sessions SessionChecker,
	jobs JobManager,
	runner PassRunner,
	server shared.ServerConfig,
	session shared.SessionConfig,
	logger *log.Logger,
) *API {
	ttl := session.VerifierTTL
	if ttl <= 0 {
		ttl = auth.DefaultVerifierTTL
	}
	return &API{
		flow:        flow,
		sessions:    sessions,
		jobs:        jobs,
		runner:      runner,
		verifierTTL: ttl,
		secure:      server.SecureCookies,
		logger:      shared.WithLogger(logger, "component", "api"),
		now:         time.Now,
	}
}

// Register adds the API routes to r.
func (a *API) Register(r Router) {
	optional := OptionalSession(a.sessions, a.secure, a.logger)
	required := RequireSession(a.sessions, a.secure, a.logger)

	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(a.index), optional)
	r.Handle(http.MethodGet, "/auth", http.HandlerFunc(a.authorize))
	r.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.callback))
	r.Handle(http.MethodGet, "/logout", http.HandlerFunc(a.logout), required)
	r.Handle(http.MethodGet, "/userPlaylists", http.HandlerFunc(a.userPlaylists), required)
	r.Handle(http.MethodGet, "/userJobs", http.HandlerFunc(a.userJobs), required)
	r.Handle(http.MethodPost, "/jobs", http.HandlerFunc(a.manageJob), required)
	r.Handle(http.MethodPost, "/run", http.HandlerFunc(a.run), required)
}

// NewHandler builds the full HTTP handler: request logging, panic recovery, the API routes
// and the health check.
func NewHandler(api *API, db Pinger, logger *log.Logger) http.Handler {
	r := NewBasicRouter()
	r.Use(RequestLogger(logger), Recoverer(logger))
	api.Register(r)
	r.Handler(&HealthHandler{db: db})
	return r
}

type sessionInfo struct {
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"userId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

func (a *API) index(w http.ResponseWriter, r *http.Request) {
	info := sessionInfo{}
	if sess, ok := SessionFromContext(r.Context()); ok {
		info = sessionInfo{Authenticated: true, UserID: sess.UserID, ExpiresAt: &sess.Expiry}
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) authorize(w http.ResponseWriter, r *http.Request) {
	authURL, handle, err := a.flow.Start(r.Context())
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	c := newCookie(verifierCookie, handle, a.now().Add(a.verifierTTL), a.secure)
	c.MaxAge = int(a.verifierTTL / time.Second)
	http.SetCookie(w, c)
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (a *API) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	http.SetCookie(w, expiredCookie(verifierCookie, a.secure))

	var handle string
	if c, err := r.Cookie(verifierCookie); err == nil {
		handle = c.Value
	}

	// A presented verifier is spent whatever the outcome.
	if reason := query.Get("error"); reason != "" {
		a.flow.Discard(handle)
		writeError(w, a.logger, fmt.Errorf("%w: %s", shared.ErrAuthFailed, reason))
		return
	}
	if handle == "" || query.Get("state") != handle {
		a.flow.Discard(handle)
		writeError(w, a.logger, fmt.Errorf("%w: state does not match", shared.ErrNoVerifier))
		return
	}

	cred, err := a.flow.Complete(r.Context(), handle, query.Get("code"))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	sess, err := a.sessions.Issue(r.Context(), cred.UserID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	a.logger.Info("user signed in", "uid", cred.UserID)
	setSessionCookies(w, sess, a.secure)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	if err := a.sessions.Logout(r.Context(), sess.UserID); err != nil {
		writeError(w, a.logger, err)
		return
	}

	clearSessionCookies(w, a.secure)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (a *API) userPlaylists(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	playlists, err := a.jobs.UserPlaylists(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (a *API) userJobs(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	jobs, err := a.jobs.UserJobs(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// manageJob handles the job form. For add, destination is the new playlist's name; for
// update and delete it is the destination playlist id.
func (a *API) manageJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, a.logger, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	sess, _ := SessionFromContext(r.Context())
	source, destination := r.PostForm.Get("source"), r.PostForm.Get("destination")

	switch action := r.PostForm.Get("action"); action {
	case "add":
		job, err := a.jobs.CreateJob(r.Context(), sess.UserID, source, destination)
		if err != nil {
			writeError(w, a.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	case "update":
		job, err := a.jobs.UpdateJobSource(r.Context(), sess.UserID, destination, source)
		if err != nil {
			writeError(w, a.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case "delete":
		if err := a.jobs.DeleteJob(r.Context(), sess.UserID, destination); err != nil {
			writeError(w, a.logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, a.logger, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidInput, action))
	}
}

type runSummary struct {
	Successes  int   `json:"successes"`
	Errors     int   `json:"errors"`
	DurationMS int64 `json:"durationMs"`
	Shared     bool  `json:"shared"`
}

// run triggers a pass. The pass outlives a client that disconnects.
func (a *API) run(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	a.logger.Info("shuffle pass requested", "uid", sess.UserID)

	result, err := a.runner.RunAll(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, runSummary{
		Successes:  result.Successes,
		Errors:     result.Errors,
		DurationMS: result.Duration.Milliseconds(),
		Shared:     result.Shared,
	})
}

// HealthHandler answers liveness probes once the database responds.
type HealthHandler struct {
	db Pinger
}

func (h *HealthHandler) Routes() []string {
	return []string{"GET /healthz"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated), auth.IsAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrWrongOwner):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrNoCode),
		errors.Is(err, shared.ErrNoVerifier),
		errors.Is(err, shared.ErrVerifierExpired),
		errors.Is(err, shared.ErrAuthFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
