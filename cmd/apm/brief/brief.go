// Package briefcmder provides the brief command for reading stored briefs.
package briefcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/apiclient"
	"github.com/papercomputeco/apm/pkg/brief"
	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/utils"
)

const briefLongDesc string = `Show a brief.

Without an id the most recently generated brief is shown. The brief is
rendered as markdown; --json prints the stored record instead.

Examples:
  apm brief
  apm brief 3f0c1a9e-...
  apm brief --lineage
  apm brief --list
  apm brief --json`

const briefShortDesc string = "Show a brief"

type briefCommander struct {
	asJSON  bool
	lineage bool
	list    bool
	limit   int
}

func NewBriefCmd() *cobra.Command {
	cmder := &briefCommander{}

	cmd := &cobra.Command{
		Use:   "brief [id]",
		Short: briefShortDesc,
		Long:  briefLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return cmder.run(ctx, cmd, id)
		},
	}

	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the brief as JSON")
	cmd.Flags().BoolVar(&cmder.lineage, "lineage", false, "Show the refinement chain back to the first brief")
	cmd.Flags().BoolVar(&cmder.list, "list", false, "List recent briefs")
	cmd.Flags().IntVar(&cmder.limit, "limit", 20, "Number of briefs to list")
	cmd.MarkFlagsMutuallyExclusive("lineage", "list")
	backend.AddClientFlags(cmd)

	return cmd
}

func (c *briefCommander) run(ctx context.Context, cmd *cobra.Command, id string) error {
	client, err := backend.NewClient(cmd)
	if err != nil {
		return err
	}

	switch {
	case c.list:
		briefs, err := client.List(ctx, c.limit)
		if err != nil {
			return err
		}
		return c.printList(os.Stdout, briefs)

	case c.lineage:
		if id == "" {
			latest, err := client.Latest(ctx)
			if err != nil {
				return notFound(err)
			}
			id = latest.ID
		}
		chain, err := client.Lineage(ctx, id)
		if err != nil {
			return notFound(err)
		}
		return c.printList(os.Stdout, chain)
	}

	var b *brief.Brief
	if id == "" {
		b, err = client.Latest(ctx)
	} else {
		b, err = client.Get(ctx, id)
	}
	if err != nil {
		return notFound(err)
	}

	if c.asJSON {
		return writeJSON(os.Stdout, b)
	}

	rendered, err := cliui.RenderMarkdown(brief.Markdown(b))
	if err != nil {
		return err
	}
	fmt.Print(rendered)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("id "+b.ID))
	return nil
}

func (c *briefCommander) printList(w io.Writer, briefs []*brief.Brief) error {
	if c.asJSON {
		return writeJSON(w, briefs)
	}
	if len(briefs) == 0 {
		fmt.Fprintf(w, "  %s No briefs yet.\n", cliui.DimStyle.Render("●"))
		return nil
	}
	fmt.Fprintln(w)
	for _, b := range briefs {
		fmt.Fprint(w, listLine(b))
	}
	fmt.Fprintln(w)
	return nil
}

func listLine(b *brief.Brief) string {
	marker := " "
	if b.IsRefinement() {
		marker = "↳"
	}
	return fmt.Sprintf("  %s %s  %s  %s  %s\n",
		marker,
		cliui.ValueStyle.Render(b.ID),
		cliui.DimStyle.Render(b.CreatedAt.Local().Format("2006-01-02 15:04")),
		cliui.KeyStyle.Render(fmt.Sprintf("%3.0f%%", b.ConfidenceScore*100)),
		utils.Truncate(b.Summary, 60),
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func notFound(err error) error {
	if apiclient.IsNotFound(err) {
		return fmt.Errorf("%w\n\nRun apm generate to create a brief", err)
	}
	return err
}
