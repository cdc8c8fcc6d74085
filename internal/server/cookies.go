package server

import (
	"net/http"
	"time"

	"github.com/desertthunder/dailyshuffle/internal/auth"
)

const (
	sessionCookie  = "sessionToken"
	userCookie     = "uid"
	verifierCookie = "verifier"
)

func readSessionCookies(r *http.Request) (token, userID string) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	}
	if c, err := r.Cookie(userCookie); err == nil {
		userID = c.Value
	}
	return token, userID
}

func setSessionCookies(w http.ResponseWriter, s *auth.Session, secure bool) {
	http.SetCookie(w, newCookie(sessionCookie, s.Token, s.Expiry, secure))
	http.SetCookie(w, newCookie(userCookie, s.UserID, s.Expiry, secure))
}

func clearSessionCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, expiredCookie(sessionCookie, secure))
	http.SetCookie(w, expiredCookie(userCookie, secure))
}

func newCookie(name, value string, expiry time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string, secure bool) *http.Cookie {
	c := newCookie(name, "", time.Unix(0, 0), secure)
	c.MaxAge = -1
	return c
}
