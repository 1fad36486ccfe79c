// Package progress decodes agent progress events from the analysis stream
// and projects them into a display-ready view of the agent pipeline.
package progress

import "encoding/json"

// Kind is the "event" discriminant carried by every progress payload.
type Kind string

const (
	KindPhaseStart      Kind = "phase_start"
	KindAgentStart      Kind = "agent_start"
	KindAgentComplete   Kind = "agent_complete"
	KindComposeComplete Kind = "compose_complete"
	KindComplete        Kind = "complete"

	// KindFailure is written by the backend relay when the upstream stream
	// fails or ends before a complete event.
	KindFailure Kind = "error"
)

// AgentID names one of the tracked analysis stages.
type AgentID string

const (
	AgentICP          AgentID = "icp_agent"
	AgentSegmentation AgentID = "segmentation_agent"
	AgentMessaging    AgentID = "messaging_agent"
	AgentCritic       AgentID = "critic_agent"
)

// KnownAgents lists the tracked agents in display order.
var KnownAgents = []AgentID{AgentICP, AgentSegmentation, AgentMessaging, AgentCritic}

// Known reports whether id is one of the tracked agents.
func (id AgentID) Known() bool {
	for _, k := range KnownAgents {
		if k == id {
			return true
		}
	}
	return false
}

// Event is one decoded progress notification. The set of implementations is
// closed; anything the decoder does not recognise becomes Unknown.
type Event interface {
	Kind() Kind
	isEvent()
}

// PhaseStart marks the beginning of a pipeline phase.
type PhaseStart struct {
	Phase   int    `json:"phase"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message,omitempty"`
}

// AgentStart reports that an agent began working.
type AgentStart struct {
	Agent    AgentID  `json:"agent"`
	Label    string   `json:"label,omitempty"`
	Message  string   `json:"message,omitempty"`
	Thinking []string `json:"thinking,omitempty"`
}

// AgentComplete reports that an agent finished.
type AgentComplete struct {
	Agent    AgentID `json:"agent"`
	Label    string  `json:"label,omitempty"`
	Summary  string  `json:"summary,omitempty"`
	ElapsedS float64 `json:"elapsed_s,omitempty"`
}

// ComposeComplete reports that the brief has been composed from the agent
// outputs and is awaiting review.
type ComposeComplete struct {
	Message string `json:"message,omitempty"`
}

// Complete is the terminal event. It carries the same payload as the
// non-streaming analysis response, plus the persisted brief identity once
// the backend has stored it.
type Complete struct {
	Brief           json.RawMessage            `json:"brief,omitempty"`
	BriefID         string                     `json:"brief_id,omitempty"`
	ConfidenceScore float64                    `json:"confidence_score"`
	AgentOutputs    map[string]json.RawMessage `json:"agent_outputs,omitempty"`
	Timing          map[string]float64         `json:"timing,omitempty"`
	CreatedAt       string                     `json:"created_at,omitempty"`
}

// Failure is an error relayed in-band by the backend.
type Failure struct {
	Message string `json:"message"`
}

// Unknown holds a payload whose discriminant is not recognised. Raw is the
// original JSON so it can be forwarded untouched.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (PhaseStart) Kind() Kind      { return KindPhaseStart }
func (AgentStart) Kind() Kind      { return KindAgentStart }
func (AgentComplete) Kind() Kind   { return KindAgentComplete }
func (ComposeComplete) Kind() Kind { return KindComposeComplete }
func (Complete) Kind() Kind        { return KindComplete }
func (Failure) Kind() Kind         { return KindFailure }
func (u Unknown) Kind() Kind       { return Kind(u.Type) }

func (PhaseStart) isEvent()      {}
func (AgentStart) isEvent()      {}
func (AgentComplete) isEvent()   {}
func (ComposeComplete) isEvent() {}
func (Complete) isEvent()        {}
func (Failure) isEvent()         {}
func (Unknown) isEvent()         {}
