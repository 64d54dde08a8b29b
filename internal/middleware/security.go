// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import "net/http"

// ContentSecurityPolicy allows the site's own scripts, the two CDNs the
// layouts load, images from any HTTPS origin (the asset bucket) and the
// inline style attributes the code highlighter and skill bars emit.
const ContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' https://cdn.tailwindcss.com https://unpkg.com; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' https: data:; " +
	"connect-src 'self'; " +
	"frame-ancestors 'self'; " +
	"form-action 'self'; " +
	"base-uri 'self'"

// NewSecureHeaders returns middleware that sets the response security
// headers. hsts adds Strict-Transport-Security and should only be on when
// the site is served over TLS.
func NewSecureHeaders(hsts bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), interest-cohort=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Content-Security-Policy", ContentSecurityPolicy)
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
