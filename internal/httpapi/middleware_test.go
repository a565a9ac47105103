package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDEchoesSafeIDs(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	tests := []struct {
		in       string
		wantEcho bool
	}{
		{"ui-42.a_b", true},
		{"", false},
		{"bad id\nlevel=error", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", tt.in)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Request-ID"); got != seen || seen == "" {
			t.Fatalf("header %q, context %q", got, seen)
		}
		if (seen == tt.in) != tt.wantEcho {
			t.Errorf("in %q: got id %q", tt.in, seen)
		}
	}
}

func TestLocalOnly(t *testing.T) {
	h := LocalOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for addr, want := range map[string]int{
		"127.0.0.1:5000":    http.StatusNoContent,
		"[::1]:5000":        http.StatusNoContent,
		"192.168.1.20:5000": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/db/checkpoint", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("%s: status %d, want %d", addr, rec.Code, want)
		}
	}
}

func TestRecoverWritesAPIError(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), RequestID, Recover)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leads", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
