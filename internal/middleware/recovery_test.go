// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func panicking(v any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(v)
	})
}

func TestRecoverer_PanicValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "something went wrong"},
		{"integer", 42},
		{"error", errors.New("store exploded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Recoverer(panicking(tt.value)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/blog", nil))

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("status: got %d, want 500", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Internal Server Error") {
				t.Errorf("body: got %q", rr.Body.String())
			}
		})
	}
}

func TestRecoverer_APIPanicReturnsJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/posts/x/like", nil)
	Recoverer(panicking("boom")).ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := rr.Body.String(); got != `{"error":"internal server error"}` {
		t.Errorf("body = %q", got)
	}
}

func TestRecoverer_AbortHandlerIsRepanicked(t *testing.T) {
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()

	Recoverer(panicking(http.ErrAbortHandler)).ServeHTTP(httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, "/api/posts/x/interactions/stream", nil))
	t.Error("ErrAbortHandler should propagate")
}

func TestRecoverer_PassThrough(t *testing.T) {
	var called bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Header().Set("X-Custom", "test-value")
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	Recoverer(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatal("next handler should have been called")
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("got %d %q, want 200 ok", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Custom"); got != "test-value" {
		t.Errorf("X-Custom: got %q, want %q", got, "test-value")
	}
}
