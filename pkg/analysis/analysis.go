// Package analysis is the client of the external multi-agent analysis
// service that turns CRM data into a meeting brief.
package analysis

import (
	"encoding/json"

	"github.com/papercomputeco/apm/pkg/crm"
)

const (
	// AnalyzePath returns the finished result as one JSON document.
	AnalyzePath = "/analyze"

	// StreamPath returns agent progress as an SSE stream ending in a
	// "complete" event.
	StreamPath = "/analyze/stream"

	// HealthPath reports service liveness.
	HealthPath = "/health"
)

// Request is the body of an analysis call. PreviousBrief and Feedback are
// set when refining an earlier brief.
type Request struct {
	Users         []crm.User      `json:"users"`
	Stats         *crm.Stats      `json:"stats,omitempty"`
	PreviousBrief json.RawMessage `json:"previous_brief,omitempty"`
	Feedback      string          `json:"feedback,omitempty"`
}

// ErrorResponse is the JSON error body returned by the service.
type ErrorResponse struct {
	Error string `json:"error"`
}
