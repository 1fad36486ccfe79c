package brief

import (
	"encoding/json"
	"strconv"
)

// Text accepts either a JSON string or number. Agent output is not strict
// about which one it uses for values like rates.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*t = Text(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// Segment is a customer segment described by firmographics.
type Segment struct {
	CompanySize string `json:"company_size"`
	Role        string `json:"role"`
	Industry    string `json:"industry"`
}

type DropOff struct {
	Stage       string `json:"stage"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

type Pattern struct {
	Pattern string `json:"pattern"`
	Segment string `json:"segment"`
	Insight string `json:"insight"`
}

type ValueProposition struct {
	Segment  string `json:"segment"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
	CTA      string `json:"cta"`
}

type EmailHook struct {
	SubjectLine   string `json:"subject_line"`
	PreviewText   string `json:"preview_text"`
	TargetSegment string `json:"target_segment"`
}

type Hypothesis struct {
	Hypothesis     string `json:"hypothesis"`
	ExpectedImpact string `json:"expected_impact"`
	Effort         string `json:"effort"`
}

// Content is the typed view of a brief's one-pager.
type Content struct {
	ExecutiveSummary string `json:"executive_summary"`

	ICP struct {
		PrimarySegment    Segment   `json:"primary_segment"`
		SecondarySegments []Segment `json:"secondary_segments"`
		Signals           []string  `json:"signals"`
	} `json:"icp"`

	Segmentation struct {
		ConversionRate     Text      `json:"conversion_rate"`
		DropOffPoints      []DropOff `json:"drop_off_points"`
		AtRiskSegments     []string  `json:"at_risk_segments"`
		EngagementPatterns []Pattern `json:"engagement_patterns"`
	} `json:"segmentation"`

	Messaging struct {
		ValuePropositions []ValueProposition `json:"value_propositions"`
		EmailHooks        []EmailHook        `json:"email_hooks"`
		GrowthHypotheses  []Hypothesis       `json:"growth_hypotheses"`
	} `json:"messaging"`

	RecommendedActions []string `json:"recommended_actions"`
	PreviousFeedback   string   `json:"previous_feedback,omitempty"`
}

// ParseContent decodes the raw content of a brief.
func ParseContent(raw json.RawMessage) (*Content, error) {
	c := &Content{}
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, err
	}
	return c, nil
}
