// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

const testToken = "0123456789abcdef"

// csrfProbe runs req through NewCSRF and reports the status, the token the
// handler saw in its context, and the response.
func csrfProbe(secure bool, req *http.Request) (*httptest.ResponseRecorder, string) {
	var seen string
	handler := NewCSRF(secure)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CSRFTokenFromCtx(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func withToken(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testToken})
	return req
}

func csrfCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == CSRFCookieName {
			return c
		}
	}
	return nil
}

func TestCSRF_IssuesCookie(t *testing.T) {
	for _, secure := range []bool{true, false} {
		rr, seen := csrfProbe(secure, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

		c := csrfCookie(rr)
		if c == nil {
			t.Fatalf("secure=%v: no CSRF cookie set", secure)
		}
		if c.Secure != secure {
			t.Errorf("Secure = %v, want %v", c.Secure, secure)
		}
		if c.SameSite != http.SameSiteStrictMode {
			t.Errorf("SameSite = %v, want Strict", c.SameSite)
		}
		if c.HttpOnly {
			t.Error("post.js reads the cookie, it must not be HttpOnly")
		}
		if len(c.Value) != 2*csrfTokenLength || seen != c.Value {
			t.Errorf("token %q (context %q), want %d hex chars in both", c.Value, seen, 2*csrfTokenLength)
		}
	}
}

func TestCSRF_ReusesExistingCookie(t *testing.T) {
	rr, seen := csrfProbe(false, withToken(httptest.NewRequest(http.MethodGet, "/blog", nil)))

	if csrfCookie(rr) != nil {
		t.Error("no new cookie should be issued when one exists")
	}
	if seen != testToken {
		t.Errorf("context token = %q, want %q", seen, testToken)
	}
}

func TestCSRFTokenFromCtx_Empty(t *testing.T) {
	if got := CSRFTokenFromCtx(httptest.NewRequest(http.MethodGet, "/", nil).Context()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestCSRF_Methods(t *testing.T) {
	tests := []struct {
		method string
		want   int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodHead, http.StatusOK},
		{http.MethodOptions, http.StatusOK},
		{http.MethodPost, http.StatusForbidden},
		{http.MethodPut, http.StatusForbidden},
		{http.MethodPatch, http.StatusForbidden},
		{http.MethodDelete, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rr, _ := csrfProbe(false, withToken(httptest.NewRequest(tt.method, "/admin/posts/1", nil)))
			if rr.Code != tt.want {
				t.Errorf("%s without token: got %d, want %d", tt.method, rr.Code, tt.want)
			}
		})
	}
}

func TestCSRF_Submissions(t *testing.T) {
	form := func(path, token string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(url.Values{CSRFFormField: {token}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return withToken(req)
	}
	header := func(method, path, token string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set(CSRFHeaderName, token)
		return withToken(req)
	}

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"form field", form("/contact", testToken), http.StatusOK},
		{"form field mismatch", form("/contact", "forged"), http.StatusForbidden},
		{"header on page route", header(http.MethodDelete, "/admin/comments/1", testToken), http.StatusOK},
		{"api header", header(http.MethodPost, "/api/posts/1/like", testToken), http.StatusOK},
		{"api header mismatch", header(http.MethodPost, "/api/posts/1/like", "forged"), http.StatusForbidden},
		{"api form field ignored", form("/api/posts/1/comments", testToken), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := csrfProbe(false, tt.req)
			if rr.Code != tt.want {
				t.Errorf("got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestCSRF_APIMismatchIsJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/comments/1", nil)
	rr, _ := csrfProbe(false, withToken(req))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rr.Body.String(), "csrf token mismatch") {
		t.Errorf("body = %q", rr.Body.String())
	}
}
