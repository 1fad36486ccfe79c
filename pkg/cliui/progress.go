package cliui

import (
	"fmt"
	"io"

	"github.com/papercomputeco/apm/pkg/progress"
)

// ProgressPrinter writes one line per visible change of a run, for
// terminals where the full-screen view is not wanted. It only reports
// transitions, so animation ticks produce no output.
type ProgressPrinter struct {
	w    io.Writer
	prev progress.State
}

// NewProgressPrinter returns a printer writing to w.
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w, prev: progress.NewState()}
}

// Print writes the lines that describe the change from the last printed
// state to s.
func (p *ProgressPrinter) Print(s progress.State) {
	if s.Phase != p.prev.Phase {
		label := s.PhaseLabel
		if label == "" {
			label = fmt.Sprintf("Phase %d", s.Phase)
		}
		fmt.Fprintf(p.w, "%s %s\n", KeyStyle.Render(fmt.Sprintf("[%d]", s.Phase)), label)
	}

	for _, a := range s.Ordered() {
		before := p.prev.Agent(a.ID)
		if a.Status == before.Status {
			continue
		}
		switch a.Status {
		case progress.StatusRunning:
			msg := a.Message
			if msg == "" {
				msg = "working"
			}
			fmt.Fprintf(p.w, "  %s %s %s\n", StepStyle.Render("·"), a.Label, DimStyle.Render(msg))
		case progress.StatusDone:
			fmt.Fprintf(p.w, "  %s %s %s %s\n",
				SuccessMark,
				a.Label,
				a.Summary,
				StepStyle.Render(fmt.Sprintf("(%s)", FormatSeconds(a.ElapsedS))),
			)
		}
	}

	if s.ComposeDone && !p.prev.ComposeDone {
		fmt.Fprintf(p.w, "  %s %s\n", SuccessMark, "Brief composed")
	}

	if s.RunComplete && !p.prev.RunComplete && s.Result != nil {
		fmt.Fprintf(p.w, "%s Brief %s ready (confidence %.0f%%)\n",
			SuccessMark,
			ValueStyle.Render(s.Result.BriefID),
			s.Result.ConfidenceScore*100,
		)
	}

	p.prev = s
}
