package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"time"
)

// VerifierLength is the PKCE code verifier length, the maximum RFC 7636 allows.
const VerifierLength = 128

// Challenge derives the S256 code challenge for verifier.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verifier is a pending PKCE code verifier.
type Verifier struct {
	Secret string
	Expiry time.Time
}

// VerifierStore holds pending verifiers keyed by an opaque handle. It is safe for concurrent use.
type VerifierStore struct {
	mu      sync.Mutex
	entries map[string]Verifier
}

// NewVerifierStore creates an empty [VerifierStore].
func NewVerifierStore() *VerifierStore {
	return &VerifierStore{entries: make(map[string]Verifier)}
}

// Put stores a verifier under handle.
func (s *VerifierStore) Put(handle string, v Verifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[handle] = v
}

// Take removes and returns the verifier for handle. Expired entries are returned too so the
// caller can tell an expired handle from an unknown one.
func (s *VerifierStore) Take(handle string) (Verifier, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[handle]
	delete(s.entries, handle)
	return v, ok
}

// Sweep removes verifiers that expired at or before now and returns how many were removed.
func (s *VerifierStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for handle, v := range s.entries {
		if !v.Expiry.After(now) {
			delete(s.entries, handle)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending verifiers.
func (s *VerifierStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
