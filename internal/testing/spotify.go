package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/dailyshuffle/internal/shared"
)

// FakePlaylist is a playlist held by [FakeSpotify]. An empty URI stands for a null track.
type FakePlaylist struct {
	ID      string
	Name    string
	OwnerID string
	URIs    []string
	Writes  int
}

// TokenReply is the response [FakeSpotify] gives on its token endpoint.
type TokenReply struct {
	Status       int
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Body         string
}

// FakeSpotify is an in-memory stand-in for the Spotify accounts service and Web API.
//
// Accounts endpoints live under /api/token and Web API endpoints under /v1.
type FakeSpotify struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     map[string]fakeUser
	tokens    map[string]string
	playlists map[string]*FakePlaylist
	order     []string
	failures  map[string][]int
	calls     map[string]int
	forms     []map[string][]string
	reply     TokenReply
	pageSize  int
	nextID    int
}

type fakeUser struct {
	ID    string
	Email string
}

// NewFakeSpotify starts a fake server that is closed at test cleanup.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{
		users:     make(map[string]fakeUser),
		tokens:    make(map[string]string),
		playlists: make(map[string]*FakePlaylist),
		failures:  make(map[string][]int),
		calls:     make(map[string]int),
		pageSize:  50,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", f.handleToken)
	mux.HandleFunc("GET /v1/me", f.authed(f.handleMe))
	mux.HandleFunc("GET /v1/me/playlists", f.authed(f.handleMyPlaylists))
	mux.HandleFunc("GET /v1/playlists/{id}", f.authed(f.handlePlaylist))
	mux.HandleFunc("GET /v1/playlists/{id}/tracks", f.authed(f.handleTracks))
	mux.HandleFunc("PUT /v1/playlists/{id}/tracks", f.authed(f.handleWrite))
	mux.HandleFunc("POST /v1/playlists/{id}/tracks", f.authed(f.handleWrite))
	mux.HandleFunc("POST /v1/users/{uid}/playlists", f.authed(f.handleCreate))

	f.Server = httptest.NewServer(f.record(mux))
	t.Cleanup(f.Server.Close)
	return f
}

// Config returns Spotify settings pointing at the fake server.
func (f *FakeSpotify) Config() shared.SpotifyConfig {
	cfg := shared.DefaultConfig().Spotify
	cfg.ClientID = "test-client"
	cfg.ClientSecret = "test-secret"
	cfg.AuthURL = f.Server.URL + "/authorize"
	cfg.TokenURL = f.Server.URL + "/api/token"
	cfg.APIBaseURL = f.Server.URL + "/v1"
	cfg.RequestsPerSecond = 1000
	return cfg
}

// AddUser registers a user reachable with accessToken.
func (f *FakeSpotify) AddUser(id, email, accessToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = fakeUser{ID: id, Email: email}
	f.tokens[accessToken] = id
}

// AddPlaylist registers a playlist.
func (f *FakeSpotify) AddPlaylist(p *FakePlaylist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlists[p.ID] = p
	f.order = append(f.order, p.ID)
}

// Playlist returns a copy of the stored playlist, or nil.
func (f *FakeSpotify) Playlist(id string) *FakePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.playlists[id]
	if !ok {
		return nil
	}
	cp := *p
	cp.URIs = append([]string(nil), p.URIs...)
	return &cp
}

// SetTokenReply sets the token endpoint response. The issued access token is
// bound to userID so later API calls authenticate.
func (f *FakeSpotify) SetTokenReply(userID string, r TokenReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = r
	if r.AccessToken != "" && userID != "" {
		f.tokens[r.AccessToken] = userID
	}
}

// SetPageSize changes the number of tracks served per page.
func (f *FakeSpotify) SetPageSize(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = n
}

// FailNext makes the next len(statuses) requests matching "METHOD /path" answer with those statuses.
func (f *FakeSpotify) FailNext(route string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = append(f.failures[route], statuses...)
}

// Calls returns how many requests matched "METHOD /path".
func (f *FakeSpotify) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// TokenForms returns the form values of every token endpoint request.
func (f *FakeSpotify) TokenForms() []map[string][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string][]string(nil), f.forms...)
}

func (f *FakeSpotify) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.calls[route]++
		var status int
		if queued := f.failures[route]; len(queued) > 0 {
			status, f.failures[route] = queued[0], queued[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": "injected failure"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *FakeSpotify) authed(h func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		f.mu.Lock()
		userID, ok := f.tokens[token]
		f.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"status": 401, "message": "Invalid access token"}})
			return
		}
		h(w, r, userID)
	}
}

func (f *FakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := map[string][]string(r.PostForm)
	if id, secret, ok := r.BasicAuth(); ok {
		form["basic_client_id"] = []string{id}
		form["basic_client_secret"] = []string{secret}
	}

	f.mu.Lock()
	f.forms = append(f.forms, form)
	reply := f.reply
	f.mu.Unlock()

	if reply.Status >= 400 {
		body := reply.Body
		if body == "" {
			body = `{"error":"invalid_grant","error_description":"Refresh token revoked"}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(reply.Status)
		fmt.Fprint(w, body)
		return
	}

	resp := map[string]any{
		"access_token": reply.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   reply.ExpiresIn,
		"scope":        "playlist-modify-private",
	}
	if reply.RefreshToken != "" {
		resp["refresh_token"] = reply.RefreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeSpotify) handleMe(w http.ResponseWriter, _ *http.Request, userID string) {
	f.mu.Lock()
	u := f.users[userID]
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email, "display_name": u.ID})
}

func (f *FakeSpotify) handleMyPlaylists(w http.ResponseWriter, r *http.Request, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := []any{}
	for _, id := range f.order {
		p := f.playlists[id]
		if p.OwnerID == userID {
			items = append(items, playlistJSON(f.Server.URL, p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next": nil})
}

func (f *FakeSpotify) handlePlaylist(w http.ResponseWriter, r *http.Request, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.playlists[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found"}})
		return
	}
	writeJSON(w, http.StatusOK, playlistJSON(f.Server.URL, p))
}

func (f *FakeSpotify) handleTracks(w http.ResponseWriter, r *http.Request, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.playlists[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found"}})
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	end := min(offset+f.pageSize, len(p.URIs))
	items := make([]any, 0, f.pageSize)
	for _, uri := range p.URIs[min(offset, len(p.URIs)):end] {
		if uri == "" {
			items = append(items, map[string]any{"track": nil})
			continue
		}
		items = append(items, map[string]any{"track": map[string]any{"uri": uri}})
	}

	var next any
	if end < len(p.URIs) {
		q := r.URL.Query()
		q.Set("offset", strconv.Itoa(end))
		next = f.Server.URL + r.URL.Path + "?" + q.Encode()
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "next": next})
}

func (f *FakeSpotify) handleWrite(w http.ResponseWriter, r *http.Request, _ string) {
	var body struct {
		URIs []string `json:"uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.URIs) > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"status": 400, "message": "Too many ids requested"}})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.playlists[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"status": 404, "message": "Not found"}})
		return
	}

	if r.Method == http.MethodPut {
		p.URIs = append([]string(nil), body.URIs...)
	} else {
		p.URIs = append(p.URIs, body.URIs...)
	}
	p.Writes++

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"snapshot_id": fmt.Sprintf("snap-%s-%d", p.ID, p.Writes)})
}

func (f *FakeSpotify) handleCreate(w http.ResponseWriter, r *http.Request, userID string) {
	if r.PathValue("uid") != userID {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": map[string]any{"status": 403, "message": "Forbidden"}})
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.nextID++
	p := &FakePlaylist{ID: fmt.Sprintf("created%d", f.nextID), Name: body.Name, OwnerID: userID}
	f.playlists[p.ID] = p
	f.order = append(f.order, p.ID)
	resp := playlistJSON(f.Server.URL, p)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, resp)
}

func playlistJSON(base string, p *FakePlaylist) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"name":          p.Name,
		"snapshot_id":   fmt.Sprintf("snap-%s-%d", p.ID, p.Writes),
		"external_urls": map[string]string{"spotify": base + "/playlist/" + p.ID},
		"owner":         map[string]string{"id": p.OwnerID},
		"tracks":        map[string]int{"total": len(p.URIs)},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
