// CLAUDE:SUMMARY HTTP middleware for the coursewatch status API: security headers, body limit, request logging, SQLite-driven rate limits.
// Package shield provides the HTTP middleware stack in front of the
// coursewatch status API and MCP endpoint.
//
// Usage:
//
//	stack, rl := shield.APIStack(db, logger)
//	go rl.Run(ctx)
//	for _, mw := range stack {
//	    r.Use(mw)
//	}
package shield

import (
	"database/sql"
	"log/slog"
	"net/http"
)

// DefaultMaxBody bounds request bodies. The API only takes small JSON
// documents.
const DefaultMaxBody = 64 * 1024

// APIStack returns the middleware stack for the status API, outermost
// first: HeadAsGet, SecurityHeaders, MaxBody, RequestLog, RateLimiter.
// /health is never rate limited.
func APIStack(db *sql.DB, logger *slog.Logger) ([]func(http.Handler) http.Handler, *RateLimiter) {
	rl := NewRateLimiter(db, WithRateLimitLogger(logger), WithExclude("/health"))
	return []func(http.Handler) http.Handler{
		HeadAsGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(DefaultMaxBody),
		RequestLog(logger),
		rl.Middleware,
	}, rl
}
