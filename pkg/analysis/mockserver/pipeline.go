package mockserver

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/papercomputeco/apm/pkg/analysis"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/crm"
	"github.com/papercomputeco/apm/pkg/progress"
)

const (
	baseConfidence       = 0.72
	refinementConfidence = 0.08
	maxConfidence        = 0.95
)

// elapsed is the simulated run time of each agent, in seconds.
var elapsed = map[progress.AgentID]float64{
	progress.AgentICP:          1.8,
	progress.AgentSegmentation: 1.4,
	progress.AgentMessaging:    2.3,
	progress.AgentCritic:       1.1,
}

// Pipeline is one simulated analysis run.
type Pipeline struct {
	Events []progress.Event
	Result brief.Result
}

// Run produces the progress events and result for req. The output depends
// only on req.
func Run(req analysis.Request) *Pipeline {
	stats := req.Stats
	if stats == nil {
		stats = crm.ComputeStats(req.Users)
	}

	icp := analyzeICP(req.Users)
	seg := analyzeSegments(req.Users, stats)
	msg := strategize(icp, seg)
	content := compose(icp, seg, msg)

	refining := len(req.PreviousBrief) > 0 && req.Feedback != ""
	if refining {
		content.PreviousFeedback = req.Feedback
	}
	critic := review(content, req.Feedback, refining)
	content.ExecutiveSummary = critic.RevisedExecutiveSummary

	outputs := map[string]json.RawMessage{
		string(progress.AgentICP):          mustJSON(icp),
		string(progress.AgentSegmentation): mustJSON(seg),
		string(progress.AgentMessaging):    mustJSON(msg),
		string(progress.AgentCritic):       mustJSON(critic),
	}

	timing := map[string]float64{}
	for id, s := range elapsed {
		timing[string(id)] = s
	}
	// Phase 1 runs in parallel.
	timing["total"] = max(elapsed[progress.AgentICP], elapsed[progress.AgentSegmentation]) +
		elapsed[progress.AgentMessaging] + elapsed[progress.AgentCritic]

	result := brief.Result{
		Brief:           mustJSON(content),
		ConfidenceScore: critic.ConfidenceScore,
		AgentOutputs:    outputs,
		Timing:          timing,
	}

	users := len(req.Users)
	events := []progress.Event{
		progress.PhaseStart{Phase: 1, Label: "Customer analysis", Message: "Running ICP and segmentation analysis in parallel"},
		progress.AgentStart{
			Agent:   progress.AgentICP,
			Label:   "ICP Analyst",
			Message: fmt.Sprintf("Profiling %d users", users),
			Thinking: []string{
				"Grouping users by company size",
				"Comparing roles of converted users",
				"Ranking industries by signup rate",
				"Extracting buying signals",
			},
		},
		progress.AgentStart{
			Agent:   progress.AgentSegmentation,
			Label:   "Segmentation Analyst",
			Message: "Mapping the signup funnel",
			Thinking: []string{
				"Computing conversion rate",
				"Locating drop-off stages",
				"Flagging at-risk segments",
			},
		},
		progress.AgentComplete{
			Agent:    progress.AgentSegmentation,
			Label:    "Segmentation Analyst",
			Summary:  fmt.Sprintf("Conversion at %s with %d at-risk segments", seg.ConversionRate, len(seg.AtRiskSegments)),
			ElapsedS: elapsed[progress.AgentSegmentation],
		},
		progress.AgentComplete{
			Agent:    progress.AgentICP,
			Label:    "ICP Analyst",
			Summary:  "Primary segment: " + describe(icp.PrimarySegment),
			ElapsedS: elapsed[progress.AgentICP],
		},
		progress.PhaseStart{Phase: 2, Label: "Messaging", Message: "Drafting positioning for the top segments"},
		progress.AgentStart{
			Agent:   progress.AgentMessaging,
			Label:   "Messaging Strategist",
			Message: "Writing value propositions",
			Thinking: []string{
				"Matching pains to the primary segment",
				"Drafting email hooks",
				"Framing growth hypotheses",
			},
		},
		progress.AgentComplete{
			Agent:    progress.AgentMessaging,
			Label:    "Messaging Strategist",
			Summary:  fmt.Sprintf("%d value propositions, %d email hooks", len(msg.ValuePropositions), len(msg.EmailHooks)),
			ElapsedS: elapsed[progress.AgentMessaging],
		},
		progress.PhaseStart{Phase: 3, Label: "Compose", Message: "Assembling the one-page brief"},
		progress.ComposeComplete{Message: "Brief composed, sending to review"},
		progress.PhaseStart{Phase: 4, Label: "Review", Message: "Critic is checking the brief"},
		progress.AgentStart{
			Agent:   progress.AgentCritic,
			Label:   "Critic",
			Message: "Reviewing claims against the data",
			Thinking: []string{
				"Checking segment claims",
				"Scoring actionability",
				"Tightening the executive summary",
			},
		},
		progress.AgentComplete{
			Agent:    progress.AgentCritic,
			Label:    "Critic",
			Summary:  fmt.Sprintf("Confidence %.0f%%", critic.ConfidenceScore*100),
			ElapsedS: elapsed[progress.AgentCritic],
		},
		progress.Complete{
			Brief:           result.Brief,
			ConfidenceScore: result.ConfidenceScore,
			AgentOutputs:    result.AgentOutputs,
			Timing:          result.Timing,
		},
	}

	return &Pipeline{Events: events, Result: result}
}

type icpOutput struct {
	ICPSummary        string          `json:"icp_summary"`
	PrimarySegment    brief.Segment   `json:"primary_segment"`
	SecondarySegments []brief.Segment `json:"secondary_segments"`
	Signals           []string        `json:"signals"`
}

type segmentationOutput struct {
	Summary            string          `json:"engagement_summary"`
	ConversionRate     string          `json:"conversion_rate"`
	DropOffPoints      []brief.DropOff `json:"drop_off_points"`
	AtRiskSegments     []string        `json:"at_risk_segments"`
	EngagementPatterns []brief.Pattern `json:"engagement_patterns"`
	RecommendedActions []string        `json:"recommended_actions"`
}

type messagingOutput struct {
	PositioningStatement string                   `json:"positioning_statement"`
	ValuePropositions    []brief.ValueProposition `json:"value_propositions"`
	EmailHooks           []brief.EmailHook        `json:"email_hooks"`
	GrowthHypotheses     []brief.Hypothesis       `json:"growth_hypotheses"`
}

type criticOutput struct {
	ConfidenceScore         float64  `json:"confidence_score"`
	RevisedExecutiveSummary string   `json:"revised_executive_summary"`
	Issues                  []string `json:"issues"`
}

func analyzeICP(users []crm.User) icpOutput {
	converted := make([]crm.User, 0, len(users))
	for _, u := range users {
		if u.Status == crm.StatusSignedUp {
			converted = append(converted, u)
		}
	}
	if len(converted) == 0 {
		converted = users
	}

	primary := brief.Segment{
		CompanySize: top(converted, func(u crm.User) string { return u.CompanySize }, 1).first(),
		Role:        top(converted, func(u crm.User) string { return u.Role }, 1).first(),
		Industry:    top(converted, func(u crm.User) string { return u.Industry }, 1).first(),
	}

	var secondary []brief.Segment
	for _, ind := range top(converted, func(u crm.User) string { return u.Industry }, 3) {
		if ind == primary.Industry {
			continue
		}
		var in []crm.User
		for _, u := range converted {
			if u.Industry == ind {
				in = append(in, u)
			}
		}
		secondary = append(secondary, brief.Segment{
			CompanySize: top(in, func(u crm.User) string { return u.CompanySize }, 1).first(),
			Role:        top(in, func(u crm.User) string { return u.Role }, 1).first(),
			Industry:    ind,
		})
	}

	signals := []string{
		fmt.Sprintf("%ss sign up more often than any other role", primary.Role),
		fmt.Sprintf("Companies with %s employees convert best", primary.CompanySize),
		fmt.Sprintf("%s leads the converted base", primary.Industry),
	}

	return icpOutput{
		ICPSummary:        fmt.Sprintf("Your best customers are %s.", describe(primary)),
		PrimarySegment:    primary,
		SecondarySegments: secondary,
		Signals:           signals,
	}
}

func analyzeSegments(users []crm.User, stats *crm.Stats) segmentationOutput {
	rate := stats.ConversionRate()
	severity := "medium"
	switch {
	case rate < 0.25:
		severity = "high"
	case rate >= 0.5:
		severity = "low"
	}

	// Signup ratio per industry; the lowest are at risk.
	totals := map[string]int{}
	signed := map[string]int{}
	for _, u := range users {
		totals[u.Industry]++
		if u.Status == crm.StatusSignedUp {
			signed[u.Industry]++
		}
	}
	industries := slices.Sorted(maps.Keys(totals))
	slices.SortStableFunc(industries, func(a, b string) int {
		ra := float64(signed[a]) / float64(totals[a])
		rb := float64(signed[b]) / float64(totals[b])
		return cmp.Compare(ra, rb)
	})
	atRisk := industries[:min(2, len(industries))]

	var patterns []brief.Pattern
	for _, src := range slices.Sorted(maps.Keys(stats.BySource)) {
		patterns = append(patterns, brief.Pattern{
			Pattern: fmt.Sprintf("%d users imported from %s", stats.BySource[src], src),
			Segment: src,
			Insight: "Compare activation between CRM sources before scaling outreach",
		})
	}

	pct := fmt.Sprintf("%.1f%%", rate*100)
	return segmentationOutput{
		Summary:        fmt.Sprintf("%s of %d users signed up.", pct, stats.Total),
		ConversionRate: pct,
		DropOffPoints: []brief.DropOff{
			{Stage: "first touch", Description: fmt.Sprintf("%d users never engaged after import", stats.NotEngaged), Severity: severity},
			{Stage: "activation", Description: "Signed-up users go quiet within the first week", Severity: "medium"},
		},
		AtRiskSegments:     atRisk,
		EngagementPatterns: patterns,
		RecommendedActions: []string{
			"Run a re-engagement sequence for users who never engaged",
			"Prioritise outreach to the primary segment",
			"Interview churned users in at-risk industries",
		},
	}
}

func strategize(icp icpOutput, seg segmentationOutput) messagingOutput {
	segments := append([]brief.Segment{icp.PrimarySegment}, icp.SecondarySegments...)

	var props []brief.ValueProposition
	var hooks []brief.EmailHook
	for _, s := range segments {
		props = append(props, brief.ValueProposition{
			Segment:  describe(s),
			Headline: fmt.Sprintf("Built for %s teams in %s", s.Role, s.Industry),
			Body:     fmt.Sprintf("Teams of %s ship faster when the busywork is gone.", s.CompanySize),
			CTA:      "Book a 15 minute walkthrough",
		})
		hooks = append(hooks, brief.EmailHook{
			SubjectLine:   fmt.Sprintf("How %s %ss save a day a week", s.Industry, s.Role),
			PreviewText:   "A two minute read on what your peers changed",
			TargetSegment: describe(s),
		})
	}

	var hypotheses []brief.Hypothesis
	for _, r := range seg.AtRiskSegments {
		hypotheses = append(hypotheses, brief.Hypothesis{
			Hypothesis:     fmt.Sprintf("Industry specific onboarding lifts %s conversion", r),
			ExpectedImpact: "medium",
			Effort:         "low",
		})
	}

	return messagingOutput{
		PositioningStatement: fmt.Sprintf("Lead with outcomes for %s.", describe(icp.PrimarySegment)),
		ValuePropositions:    props,
		EmailHooks:           hooks,
		GrowthHypotheses:     hypotheses,
	}
}

func compose(icp icpOutput, seg segmentationOutput, msg messagingOutput) *brief.Content {
	c := &brief.Content{
		ExecutiveSummary:   strings.Join([]string{icp.ICPSummary, seg.Summary, msg.PositioningStatement}, " "),
		RecommendedActions: seg.RecommendedActions,
	}
	c.ICP.PrimarySegment = icp.PrimarySegment
	c.ICP.SecondarySegments = icp.SecondarySegments
	c.ICP.Signals = icp.Signals
	c.Segmentation.ConversionRate = brief.Text(seg.ConversionRate)
	c.Segmentation.DropOffPoints = seg.DropOffPoints
	c.Segmentation.AtRiskSegments = seg.AtRiskSegments
	c.Segmentation.EngagementPatterns = seg.EngagementPatterns
	c.Messaging.ValuePropositions = msg.ValuePropositions
	c.Messaging.EmailHooks = msg.EmailHooks
	c.Messaging.GrowthHypotheses = msg.GrowthHypotheses
	return c
}

func review(c *brief.Content, feedback string, refining bool) criticOutput {
	out := criticOutput{
		ConfidenceScore:         baseConfidence,
		RevisedExecutiveSummary: c.ExecutiveSummary,
		Issues:                  []string{"Segment sizes are small; validate with interviews"},
	}
	if refining {
		out.ConfidenceScore = min(baseConfidence+refinementConfidence, maxConfidence)
		out.RevisedExecutiveSummary = c.ExecutiveSummary + " Revised for feedback: " + feedback
		out.Issues = nil
	}
	return out
}

type ranked []string

func (r ranked) first() string {
	if len(r) == 0 {
		return "unknown"
	}
	return r[0]
}

// top returns the n most frequent values of key, ties broken by value.
func top(users []crm.User, key func(crm.User) string, n int) ranked {
	counts := map[string]int{}
	for _, u := range users {
		if k := key(u); k != "" {
			counts[k]++
		}
	}
	keys := slices.Sorted(maps.Keys(counts))
	slices.SortStableFunc(keys, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})
	return ranked(keys[:min(n, len(keys))])
}

func describe(s brief.Segment) string {
	return fmt.Sprintf("%ss at %s %s companies", s.Role, s.CompanySize, s.Industry)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mockserver: encoding %T: %v", v, err))
	}
	return b
}
