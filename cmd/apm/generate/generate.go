// Package generatecmder provides the generate command, which runs a brief
// generation and shows each analysis agent as it works.
package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/briefing"
	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/config"
	"github.com/papercomputeco/apm/pkg/dotdir"
	"github.com/papercomputeco/apm/pkg/progress"
)

const generateLongDesc string = `Generate a meeting brief from the imported CRM users.

Progress streams live from the API: each analysis agent is shown waiting,
running with its current thought, and done with a summary. Pass --plain for
one line per change instead of the full-screen view, or --no-stream to wait
for the finished brief.

Refine a brief by giving feedback. Without --brief-id the last brief this
CLI generated is refined.

Examples:
  apm generate
  apm generate --plain
  apm generate --feedback "focus on fintech"
  apm generate --brief-id 3f0c1a9e-... --feedback "shorter"`

const generateShortDesc string = "Generate a brief with live agent progress"

type generateCommander struct {
	plain    bool
	noStream bool
	briefID  string
	feedback string
	thinking string

	configDir string
	state     *dotdir.Manager
	logger    *zap.Logger
}

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{state: dotdir.NewManager()}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print one line per progress change")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the finished brief without live progress")
	cmd.Flags().StringVar(&cmder.briefID, "brief-id", "", "Brief to refine (default: the last generated brief)")
	cmd.Flags().StringVarP(&cmder.feedback, "feedback", "f", "", "Feedback to refine the brief with")
	config.AddStringFlag(cmd, backend.Flags, config.FlagThinkingInterval, &cmder.thinking)
	backend.AddClientFlags(cmd)

	return cmd
}

func (c *generateCommander) run(ctx context.Context, cmd *cobra.Command) error {
	client, err := backend.NewClient(cmd, config.FlagThinkingInterval)
	if err != nil {
		return err
	}
	c.configDir = client.ConfigDir
	c.logger = client.Logger

	interval, err := time.ParseDuration(client.Viper.GetString("client.thinking_interval"))
	if err != nil {
		return fmt.Errorf("invalid client.thinking_interval: %w", err)
	}

	req, err := c.request()
	if err != nil {
		return err
	}

	if c.noStream {
		return c.runBlocking(ctx, client, req)
	}

	stream, err := client.OpenStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	var final progress.State
	if c.plain {
		final, err = runPlain(stream)
	} else {
		final, err = runTUI(ctx, stream, title(req), interval, c.logger)
	}
	if errors.Is(err, errAborted) {
		fmt.Printf("\n  %s %s\n\n", cliui.FailMark, "Generation cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	if final.Result == nil || final.Result.BriefID == "" {
		return errors.New("stream completed without a brief id")
	}

	c.remember(final.Result.BriefID)
	fmt.Printf("\n  %s Brief %s ready %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(final.Result.BriefID),
		cliui.DimStyle.Render(fmt.Sprintf("(confidence %.0f%%)", final.Result.ConfidenceScore*100)),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Run apm brief to read it"))
	return nil
}

// request builds the stream request, falling back to the remembered brief
// when only feedback is given.
func (c *generateCommander) request() (briefing.StreamRequest, error) {
	req := briefing.StreamRequest{
		BriefID:  strings.TrimSpace(c.briefID),
		Feedback: strings.TrimSpace(c.feedback),
	}

	switch {
	case req.BriefID != "" && req.Feedback == "":
		return req, errors.New("--feedback is required to refine a brief")

	case req.BriefID == "" && req.Feedback != "":
		state, err := c.state.LoadState(c.configDir)
		if err != nil {
			return req, fmt.Errorf("loading state: %w", err)
		}
		if state == nil || state.LastBriefID == "" {
			return req, errors.New("no brief to refine; pass --brief-id or run apm generate first")
		}
		req.BriefID = state.LastBriefID
	}

	return req, nil
}

func (c *generateCommander) runBlocking(ctx context.Context, client *backend.Client, req briefing.StreamRequest) error {
	var b *brief.Brief
	msg := "Generating brief"
	if req.Refinement() {
		msg = "Refining brief " + req.BriefID
	}

	if err := cliui.Step(os.Stdout, msg, func() error {
		var err error
		if req.Refinement() {
			b, err = client.Feedback(ctx, req.BriefID, req.Feedback)
		} else {
			b, err = client.Generate(ctx)
		}
		return err
	}); err != nil {
		return err
	}

	c.remember(b.ID)
	fmt.Printf("\n  %s Brief %s ready %s\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(b.ID),
		cliui.DimStyle.Render(fmt.Sprintf("(confidence %.0f%%)", b.ConfidenceScore*100)),
	)
	return nil
}

// remember stores id as the last brief. Failing to do so only loses the
// default for the next refinement.
func (c *generateCommander) remember(id string) {
	err := c.state.SaveState(&dotdir.State{LastBriefID: id, UpdatedAt: time.Now().UTC()}, c.configDir)
	if err != nil {
		c.logger.Warn("could not save last brief", zap.Error(err))
	}
}

func title(req briefing.StreamRequest) string {
	if req.Refinement() {
		return "Refining brief " + req.BriefID
	}
	return "Generating brief"
}

// runPlain prints each visible change as it arrives.
func runPlain(stream eventSource) (progress.State, error) {
	printer := cliui.NewProgressPrinter(os.Stdout)
	state := progress.NewState()

	err := stream.Each(func(ev progress.Event) {
		state = progress.Apply(state, ev)
		printer.Print(state)
	})
	return state, err
}
