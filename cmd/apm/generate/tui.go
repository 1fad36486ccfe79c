package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/progress"
	"github.com/papercomputeco/apm/pkg/utils"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

// errAborted is returned by runTUI when the user quits before the run ends.
var errAborted = errors.New("generation aborted")

// finishDelay keeps the finished view on screen before the program exits.
const finishDelay = 800 * time.Millisecond

// eventSource is the part of apiclient.EventStream the views consume.
type eventSource interface {
	Each(fn func(progress.Event)) error
	Close() error
}

var (
	genTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	genMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	genLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	genThoughtStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Italic(true)
	genSummaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	genErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	genDividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	genSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

type generateKeyMap struct {
	Quit key.Binding
}

func (k generateKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit}
}

func (k generateKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Quit}}
}

func defaultKeyMap() generateKeyMap {
	return generateKeyMap{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "cancel")),
	}
}

// stateMsg carries a projector snapshot into the program.
type stateMsg progress.State

// streamDoneMsg reports that the event stream ended.
type streamDoneMsg struct {
	err error
}

type quitMsg struct{}

type generateModel struct {
	title   string
	state   progress.State
	spinner spinner.Model
	keys    generateKeyMap
	help    help.Model
	width   int
	started time.Time
	done    bool
	aborted bool
	err     error
}

func newGenerateModel(title string, now time.Time) generateModel {
	return generateModel{
		title: title,
		state: progress.NewState(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Spinner{Frames: cliui.SpinnerFrames, FPS: time.Second / 12}),
			spinner.WithStyle(genSpinnerStyle),
		),
		keys:    defaultKeyMap(),
		help:    help.New(),
		started: now,
	}
}

// runTUI shows the run full screen until it completes or the user quits.
func runTUI(ctx context.Context, stream eventSource, title string, interval time.Duration, logger *zap.Logger) (progress.State, error) {
	model := newGenerateModel(title, time.Now())
	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)

	projector := progress.NewProjector(
		progress.WithInterval(interval),
		progress.WithLogger(logger),
		progress.WithOnChange(func(s progress.State) {
			program.Send(stateMsg(s))
		}),
	)
	defer projector.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := stream.Each(func(ev progress.Event) {
			projector.Apply(ev)
		})
		program.Send(streamDoneMsg{err: err})
	}()

	final, runErr := program.Run()

	// Unblock the reader if the program exited first.
	stream.Close()
	<-done

	if runErr != nil && !errors.Is(runErr, bubbletea.ErrProgramKilled) {
		return projector.State(), fmt.Errorf("running progress view: %w", runErr)
	}

	m, ok := final.(generateModel)
	if !ok || m.aborted || !m.done {
		return projector.State(), errAborted
	}
	return projector.State(), m.err
}

func (m generateModel) Init() bubbletea.Cmd {
	return m.spinner.Tick
}

func (m generateModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case stateMsg:
		m.state = progress.State(msg)
		return m, nil
	case streamDoneMsg:
		m.done = true
		m.err = msg.err
		return m, bubbletea.Tick(finishDelay, func(time.Time) bubbletea.Msg { return quitMsg{} })
	case quitMsg:
		return m, bubbletea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd bubbletea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case bubbletea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.aborted = !m.done
			return m, bubbletea.Quit
		}
	}

	return m, nil
}

func (m generateModel) View() string {
	var b strings.Builder

	elapsed := cliui.FormatDuration(time.Since(m.started).Truncate(100 * time.Millisecond))
	fmt.Fprintf(&b, "\n  %s  %s\n", genTitleStyle.Render(m.title), genMutedStyle.Render(elapsed))
	fmt.Fprintf(&b, "  %s\n\n", genMutedStyle.Render(phaseLine(m.state)))

	for _, a := range m.state.Ordered() {
		b.WriteString(m.agentLine(a))
	}

	compose := genMutedStyle.Render("·")
	if m.state.ComposeDone {
		compose = cliui.SuccessMark
	}
	fmt.Fprintf(&b, "\n  %s %s\n", compose, genLabelStyle.Render("Compose brief"))

	fmt.Fprintf(&b, "  %s\n", genDividerStyle.Render(strings.Repeat("─", m.dividerWidth())))
	switch {
	case m.err != nil:
		fmt.Fprintf(&b, "  %s %s\n", cliui.FailMark, genErrorStyle.Render(m.err.Error()))
	case m.state.RunComplete && m.state.Result != nil:
		fmt.Fprintf(&b, "  %s Brief ready %s\n", cliui.SuccessMark,
			genMutedStyle.Render(fmt.Sprintf("(confidence %.0f%%)", m.state.Result.ConfidenceScore*100)))
	default:
		fmt.Fprintf(&b, "  %s\n", genMutedStyle.Render(m.help.View(m.keys)))
	}

	return b.String()
}

func (m generateModel) agentLine(a progress.AgentState) string {
	label := genLabelStyle.Render(fmt.Sprintf("%-22s", a.Label))

	switch a.Status {
	case progress.StatusRunning:
		detail := a.Thought()
		if detail == "" {
			detail = a.Message
		}
		return fmt.Sprintf("  %s %s %s\n", m.spinner.View(), label, genThoughtStyle.Render(utils.Truncate(detail, m.detailWidth())))
	case progress.StatusDone:
		return fmt.Sprintf("  %s %s %s %s\n",
			cliui.SuccessMark,
			label,
			genSummaryStyle.Render(utils.Truncate(a.Summary, m.detailWidth())),
			genMutedStyle.Render(fmt.Sprintf("(%s)", cliui.FormatSeconds(a.ElapsedS))),
		)
	default:
		return fmt.Sprintf("  %s %s %s\n", genMutedStyle.Render("·"), label, genMutedStyle.Render("waiting"))
	}
}

func phaseLine(s progress.State) string {
	switch {
	case s.RunComplete:
		return "Complete"
	case s.Phase == 0:
		return "Starting"
	case s.PhaseLabel != "":
		return fmt.Sprintf("Phase %d · %s", s.Phase, s.PhaseLabel)
	default:
		return fmt.Sprintf("Phase %d", s.Phase)
	}
}

func (m generateModel) dividerWidth() int {
	if m.width <= 4 {
		return 60
	}
	return min(m.width-4, 100)
}

func (m generateModel) detailWidth() int {
	if m.width <= 0 {
		return 72
	}
	return max(m.width-40, 20)
}
