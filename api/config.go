// Package api provides the HTTP API server behind the dashboard: CRM users
// and stats, brief generation with live agent progress, and brief history.
package api

// DefaultCORSOrigins are the dashboard dev server origins.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string

	// CORSOrigins are the origins allowed to call the API. Defaults to
	// DefaultCORSOrigins.
	CORSOrigins []string
}
