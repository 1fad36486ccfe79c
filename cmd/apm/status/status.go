// Package statuscmder provides the status command for showing the brief the
// CLI last produced.
package statuscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/dotdir"
	"github.com/papercomputeco/apm/pkg/utils"
)

const statusLongDesc string = `Show the brief the CLI last generated.

Reads the state kept in the local .apm/ directory (or ~/.apm/). When the API
is reachable the brief summary and confidence are shown too.

apm generate --feedback refines this brief when --brief-id is not given.

Examples:
  apm status`

const statusShortDesc string = "Show the last generated brief"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runStatus(ctx, cmd)
		},
	}

	backend.AddClientFlags(cmd)

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command) error {
	client, err := backend.NewClient(cmd)
	if err != nil {
		return err
	}

	state, err := dotdir.NewManager().LoadState(client.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	if state == nil || state.LastBriefID == "" {
		fmt.Printf("  %s No brief generated yet. Run %s to create one.\n",
			cliui.DimStyle.Render("●"),
			cliui.KeyStyle.Render("apm generate"),
		)
		return nil
	}

	fmt.Printf("\n  %s  %s\n", cliui.KeyStyle.Render("Last brief:"), cliui.ValueStyle.Render(state.LastBriefID))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Updated:   "), cliui.DimStyle.Render(state.UpdatedAt.Local().Format("2006-01-02 15:04:05")))

	b, err := client.Get(ctx, state.LastBriefID)
	if err != nil {
		fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("API:       "), cliui.DimStyle.Render(err.Error()))
		return nil
	}

	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Confidence:"), cliui.ValueStyle.Render(fmt.Sprintf("%.0f%%", b.ConfidenceScore*100)))
	if b.ParentBriefID != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Refines:   "), cliui.DimStyle.Render(b.ParentBriefID))
	}
	fmt.Printf("\n  %s\n\n", utils.Truncate(b.Summary, 96))
	return nil
}
