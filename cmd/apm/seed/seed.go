// Package seedcmder provides the seed command that imports the mock CRM users.
package seedcmder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/cmd/apm/backend"
	"github.com/papercomputeco/apm/pkg/cliui"
	"github.com/papercomputeco/apm/pkg/logger"
)

const seedLongDesc string = `Seed the mock CRM users.

By default the users are imported through a running apm API server. With
--direct they are written straight into the configured store, which works
without any server running.

Examples:
  apm seed
  apm seed --api-target http://localhost:8000
  apm seed --direct --sqlite ./apm.sqlite`

const seedShortDesc string = "Seed mock CRM users"

type seedCommander struct {
	direct bool
}

type seedOutcome struct {
	message  string
	inserted int
	total    int
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if cmder.direct {
				return cmder.runDirect(ctx, cmd)
			}
			return cmder.run(ctx, cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.direct, "direct", false, "Write to the configured store instead of calling the API")
	backend.AddClientFlags(cmd)
	backend.AddServiceFlags(cmd)

	return cmd
}

func (c *seedCommander) run(ctx context.Context, cmd *cobra.Command) error {
	client, err := backend.NewClient(cmd)
	if err != nil {
		return err
	}

	var out seedOutcome
	if err := cliui.Step(os.Stdout, "Seeding mock CRM users", func() error {
		res, err := client.Seed(ctx)
		if err != nil {
			return err
		}
		out = seedOutcome{message: res.Message, inserted: res.Inserted, total: res.Total}
		return nil
	}); err != nil {
		return err
	}

	report(out, client.Target())
	return nil
}

func (c *seedCommander) runDirect(ctx context.Context, cmd *cobra.Command) error {
	v, configDir, err := backend.Viper(cmd, backend.ServiceFlags...)
	if err != nil {
		return err
	}
	opts, err := backend.LoadOptions(v, configDir)
	if err != nil {
		return err
	}

	debug, _ := cmd.Flags().GetBool("debug")
	stack, err := backend.Build(ctx, opts, logger.NewCLILogger(debug))
	if err != nil {
		return err
	}
	defer stack.Close()

	var out seedOutcome
	if err := cliui.Step(os.Stdout, "Seeding mock CRM users", func() error {
		res, err := stack.Service.Seed(ctx)
		if err != nil {
			return err
		}
		out = seedOutcome{message: res.Message, inserted: res.Inserted, total: res.Total}
		return nil
	}); err != nil {
		return err
	}

	report(out, opts.StorageDriver+" storage")
	return nil
}

func report(out seedOutcome, into string) {
	if out.inserted == 0 {
		fmt.Printf("\n  %s %s %s\n\n",
			cliui.SuccessMark,
			out.message,
			cliui.DimStyle.Render(fmt.Sprintf("(%d users in %s)", out.total, into)),
		)
		return
	}

	fmt.Printf("\n  %s Seeded %s users %s into %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(strconv.Itoa(out.inserted)),
		cliui.DimStyle.Render(fmt.Sprintf("(%d total)", out.total)),
		cliui.DimStyle.Render(into),
	)
}
