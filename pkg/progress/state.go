package progress

import (
	"maps"
	"slices"
)

// Status is the lifecycle position of a single agent within a run.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
)

// NoThought is the thinking index of an agent that has not shown its first
// thinking step yet.
const NoThought = -1

// DefaultSummary is used when an agent completes without a summary.
const DefaultSummary = "Done"

// AgentState is the projected view of one agent.
type AgentState struct {
	ID            AgentID  `json:"agent"`
	Status        Status   `json:"status"`
	Label         string   `json:"label"`
	Message       string   `json:"message,omitempty"`
	Thinking      []string `json:"thinking,omitempty"`
	ThinkingIndex int      `json:"thinking_index"`
	Summary       string   `json:"summary,omitempty"`
	ElapsedS      float64  `json:"elapsed_s,omitempty"`
}

// Thought returns the thinking step currently shown, or "" when the agent
// has none.
func (a AgentState) Thought() string {
	if len(a.Thinking) == 0 {
		return ""
	}
	if a.ThinkingIndex < 0 || a.ThinkingIndex >= len(a.Thinking) {
		return a.Thinking[0]
	}
	return a.Thinking[a.ThinkingIndex]
}

// State is the progress of one generation run. Values are treated as
// immutable: Apply and AdvanceThinking return modified copies.
type State struct {
	Agents      map[AgentID]AgentState `json:"agents"`
	Phase       int                    `json:"phase"`
	PhaseLabel  string                 `json:"phase_label,omitempty"`
	ComposeDone bool                   `json:"compose_done"`
	RunComplete bool                   `json:"run_complete"`

	// Result is the terminal event once the run completes.
	Result *Complete `json:"result,omitempty"`

	// PhaseRegressions counts phase_start events whose phase was lower than
	// the current one.
	PhaseRegressions int `json:"phase_regressions,omitempty"`
}

// NewState returns the baseline of a run: every known agent waiting, phase 0.
func NewState() State {
	agents := make(map[AgentID]AgentState, len(KnownAgents))
	for _, id := range KnownAgents {
		agents[id] = AgentState{
			ID:            id,
			Status:        StatusWaiting,
			Label:         defaultLabel(id),
			ThinkingIndex: NoThought,
		}
	}
	return State{Agents: agents}
}

// Agent returns the state of id. Unknown ids report a zero-value waiting
// agent.
func (s State) Agent(id AgentID) AgentState {
	if a, ok := s.Agents[id]; ok {
		return a
	}
	return AgentState{ID: id, Status: StatusWaiting, ThinkingIndex: NoThought}
}

// Ordered returns the known agents in display order.
func (s State) Ordered() []AgentState {
	out := make([]AgentState, 0, len(KnownAgents))
	for _, id := range KnownAgents {
		out = append(out, s.Agent(id))
	}
	return out
}

// Animating reports whether any agent is running with thinking steps to
// cycle through while the run is still in progress.
func (s State) Animating() bool {
	if s.RunComplete {
		return false
	}
	for _, a := range s.Agents {
		if a.Status == StatusRunning && len(a.Thinking) > 0 {
			return true
		}
	}
	return false
}

func (s State) clone() State {
	s.Agents = maps.Clone(s.Agents)
	if s.Agents == nil {
		s.Agents = make(map[AgentID]AgentState)
	}
	return s
}

// Apply returns the state that follows s after ev. It never mutates s.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case PhaseStart:
		next := s.clone()
		if e.Phase < s.Phase {
			next.PhaseRegressions++
		}
		next.Phase = e.Phase
		next.PhaseLabel = e.Label
		return next

	case AgentStart:
		cur, ok := s.Agents[e.Agent]
		if !e.Agent.Known() || !ok || cur.Status == StatusDone {
			return s
		}

		next := s.clone()
		label := e.Label
		if label == "" {
			label = cur.Label
		}
		next.Agents[e.Agent] = AgentState{
			ID:            e.Agent,
			Status:        StatusRunning,
			Label:         label,
			Message:       e.Message,
			Thinking:      slices.Clone(e.Thinking),
			ThinkingIndex: NoThought,
		}
		return next

	case AgentComplete:
		cur, ok := s.Agents[e.Agent]
		if !e.Agent.Known() || !ok {
			return s
		}

		next := s.clone()
		cur.Status = StatusDone
		if e.Label != "" {
			cur.Label = e.Label
		}
		cur.Summary = e.Summary
		if cur.Summary == "" {
			cur.Summary = DefaultSummary
		}
		cur.ElapsedS = e.ElapsedS
		cur.ThinkingIndex = NoThought
		next.Agents[e.Agent] = cur
		return next

	case ComposeComplete:
		next := s.clone()
		next.ComposeDone = true
		return next

	case Complete:
		next := s.clone()
		next.RunComplete = true
		result := e
		next.Result = &result
		return next

	default:
		// Failure and Unknown carry no state.
		return s
	}
}

// Recompute replays events from the baseline.
func Recompute(events []Event) State {
	s := NewState()
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}

// AdvanceThinking moves the thinking cursor of every running agent one step
// forward, wrapping after the last step. It is a display concern only and
// has no effect once the run is complete.
func AdvanceThinking(s State) State {
	if !s.Animating() {
		return s
	}

	next := s.clone()
	for id, a := range next.Agents {
		if a.Status != StatusRunning || len(a.Thinking) == 0 {
			continue
		}
		a.ThinkingIndex = (a.ThinkingIndex + 1) % len(a.Thinking)
		next.Agents[id] = a
	}
	return next
}

func defaultLabel(id AgentID) string {
	switch id {
	case AgentICP:
		return "ICP Analyst"
	case AgentSegmentation:
		return "Segmentation Analyst"
	case AgentMessaging:
		return "Messaging Strategist"
	case AgentCritic:
		return "Critic"
	default:
		return string(id)
	}
}
