// Package connectcmder provides the connect command for the mock CRM
// integrations.
package connectcmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/crm"
)

const connectLongDesc string = `Connect a CRM source.

The integrations are mocked: connecting imports the mock users the same way
apm seed does and reports the resulting stats.

Examples:
  apm connect salesforce
  apm connect hubspot`

const connectShortDesc string = "Connect a CRM source (mock)"

var sources = []string{string(crm.SourceSalesforce), string(crm.SourceHubSpot)}

func NewConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "connect <source>",
		Short:     connectShortDesc,
		Long:      connectLongDesc,
		Args:      cobra.ExactArgs(1),
		ValidArgs: sources,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runConnect(ctx, cmd, args[0])
		},
	}

	backend.AddClientFlags(cmd)

	return cmd
}

func runConnect(ctx context.Context, cmd *cobra.Command, source string) error {
	if !crm.ValidSource(source) {
		return fmt.Errorf("unknown source %q (available: %s)", source, strings.Join(sources, ", "))
	}

	client, err := backend.NewClient(cmd)
	if err != nil {
		return err
	}

	var message string
	var total int
	if err := cliui.Step(os.Stdout, "Connecting to "+source, func() error {
		res, err := client.Connect(ctx, source)
		if err != nil {
			return err
		}
		message = res.Message
		if res.Stats != nil {
			total = res.Stats.Total
		}
		return nil
	}); err != nil {
		return err
	}

	fmt.Printf("\n  %s %s %s\n\n",
		cliui.SuccessMark,
		message,
		cliui.DimStyle.Render(fmt.Sprintf("(%d users)", total)),
	)
	return nil
}
