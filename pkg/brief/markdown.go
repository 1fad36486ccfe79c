package brief

import (
	"fmt"
	"strings"
)

// Markdown renders b as a one-page meeting brief. Content that does not
// parse falls back to the stored summary.
func Markdown(b *Brief) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Meeting Brief\n\n")
	fmt.Fprintf(&sb, "_%s · confidence %.0f%%_\n\n", b.CreatedAt.Format("2006-01-02 15:04 MST"), b.ConfidenceScore*100)
	if b.Feedback != "" {
		fmt.Fprintf(&sb, "> Refined with feedback: %s\n\n", b.Feedback)
	}

	c, err := ParseContent(b.Content)
	if err != nil {
		fmt.Fprintf(&sb, "## Executive Summary\n\n%s\n", b.Summary)
		return sb.String()
	}

	summary := c.ExecutiveSummary
	if summary == "" {
		summary = b.Summary
	}
	fmt.Fprintf(&sb, "## Executive Summary\n\n%s\n\n", strings.TrimSpace(summary))

	sb.WriteString("## Ideal Customer Profile\n\n")
	if seg := describeSegment(c.ICP.PrimarySegment); seg != "" {
		fmt.Fprintf(&sb, "**Primary:** %s\n\n", seg)
	}
	for _, s := range c.ICP.SecondarySegments {
		if seg := describeSegment(s); seg != "" {
			fmt.Fprintf(&sb, "- Secondary: %s\n", seg)
		}
	}
	bullets(&sb, "Signals", c.ICP.Signals)

	sb.WriteString("\n## Engagement\n\n")
	if c.Segmentation.ConversionRate != "" {
		fmt.Fprintf(&sb, "**Conversion rate:** %s\n\n", c.Segmentation.ConversionRate)
	}
	for _, d := range c.Segmentation.DropOffPoints {
		fmt.Fprintf(&sb, "- **%s** (%s): %s\n", d.Stage, orDash(d.Severity), d.Description)
	}
	for _, p := range c.Segmentation.EngagementPatterns {
		fmt.Fprintf(&sb, "- %s, %s: %s\n", p.Pattern, p.Segment, p.Insight)
	}
	bullets(&sb, "At risk", c.Segmentation.AtRiskSegments)

	sb.WriteString("\n## Messaging\n\n")
	for _, v := range c.Messaging.ValuePropositions {
		fmt.Fprintf(&sb, "- **%s** for %s: %s", v.Headline, orDash(v.Segment), v.Body)
		if v.CTA != "" {
			fmt.Fprintf(&sb, " _(%s)_", v.CTA)
		}
		sb.WriteString("\n")
	}
	for _, h := range c.Messaging.EmailHooks {
		fmt.Fprintf(&sb, "- Email \"%s\" to %s\n", h.SubjectLine, orDash(h.TargetSegment))
	}
	for _, h := range c.Messaging.GrowthHypotheses {
		fmt.Fprintf(&sb, "- Hypothesis: %s (impact %s, effort %s)\n", h.Hypothesis, orDash(h.ExpectedImpact), orDash(h.Effort))
	}

	if len(c.RecommendedActions) > 0 {
		sb.WriteString("\n## Recommended Actions\n\n")
		for i, a := range c.RecommendedActions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, a)
		}
	}

	return sb.String()
}

func describeSegment(s Segment) string {
	var parts []string
	for _, p := range []string{s.Role, s.Industry, s.CompanySize} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " · ")
}

func bullets(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n**%s:**\n\n", title)
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
