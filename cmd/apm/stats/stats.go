// Package statscmder provides the stats command for the CRM user base.
package statscmder

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/crm"
)

const statsLongDesc string = `Show aggregate stats for the imported CRM users.

Examples:
  apm stats`

const statsShortDesc string = "Show CRM user stats"

func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: statsShortDesc,
		Long:  statsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, err := backend.NewClient(cmd)
			if err != nil {
				return err
			}
			stats, err := client.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Print(renderStats(stats))
			return nil
		},
	}

	backend.AddClientFlags(cmd)

	return cmd
}

func renderStats(s *crm.Stats) string {
	if s.Total == 0 {
		return fmt.Sprintf("\n  %s No users yet. Run %s first.\n\n",
			cliui.DimStyle.Render("●"),
			cliui.KeyStyle.Render("apm seed"),
		)
	}

	out := "\n"
	out += line("Total:      ", strconv.Itoa(s.Total))
	out += line("Signed up:  ", strconv.Itoa(s.SignedUp))
	out += line("Not engaged:", strconv.Itoa(s.NotEngaged))
	out += line("Conversion: ", fmt.Sprintf("%.1f%%", s.ConversionRate()*100))

	out += breakdown("By source", s.BySource)
	out += breakdown("By company size", s.ByCompanySize)
	out += breakdown("By role", s.ByRole)
	out += breakdown("By industry", s.ByIndustry)
	return out + "\n"
}

func line(key, value string) string {
	return fmt.Sprintf("  %s  %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
}

// breakdown lists counts largest first, ties by name.
func breakdown(title string, counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}

	keys := slices.Collect(maps.Keys(counts))
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(counts[b], counts[a]), strings.Compare(a, b))
	})

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	out := fmt.Sprintf("\n  %s\n", cliui.KeyStyle.Render(title))
	for _, k := range keys {
		out += fmt.Sprintf("    %-*s  %s\n", width, k, cliui.ValueStyle.Render(strconv.Itoa(counts[k])))
	}
	return out
}
