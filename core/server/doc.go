// Package server holds the report HTTP server configuration.
//
// The serve command builds a Fiber app from these settings; the API key, when set,
// is enforced by core/middleware.
package server
