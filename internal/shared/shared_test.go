package shared

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRandomString(t *testing.T) {
	t.Run("length and alphabet", func(t *testing.T) {
		s, err := RandomString(128)
		if err != nil {
			t.Fatalf("RandomString() error = %v", err)
		}
		if len(s) != 128 {
			t.Errorf("expected 128 characters, got %d", len(s))
		}
		for _, c := range s {
			if !strings.ContainsRune(alphanumeric, c) {
				t.Fatalf("unexpected character %q", c)
			}
		}
	})

	t.Run("unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 50 {
			s, err := RandomString(43)
			if err != nil {
				t.Fatalf("RandomString() error = %v", err)
			}
			if seen[s] {
				t.Fatalf("duplicate random string %s", s)
			}
			seen[s] = true
		}
	})
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	if err := SetLogLevel(logger, "WARN"); err != nil {
		t.Fatalf("SetLogLevel() error = %v", err)
	}
	if logger.GetLevel() != log.WarnLevel {
		t.Errorf("expected warn level, got %v", logger.GetLevel())
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}

	if err := SetLogLevel(logger, "loud"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestResponseError(t *testing.T) {
	err := NewResponseError(ErrMalformedResponse, http.StatusOK, []byte(`{"oops":true}`))

	if !errors.Is(err, ErrMalformedResponse) {
		t.Error("expected error to unwrap to ErrMalformedResponse")
	}
	if !strings.Contains(err.Error(), `{"oops":true}`) {
		t.Errorf("expected body in message, got %s", err.Error())
	}

	var re *ResponseError
	if !errors.As(err, &re) || re.Status != http.StatusOK {
		t.Error("expected errors.As to recover the status")
	}
}
