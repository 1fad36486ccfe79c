// Package apmcmder is the root of the apm command tree.
package apmcmder

import (
	"github.com/spf13/cobra"

	briefcmder "github.com/papercomputeco/apm/cmd/apm/brief"
	configcmder "github.com/papercomputeco/apm/cmd/apm/config"
	connectcmder "github.com/papercomputeco/apm/cmd/apm/connect"
	generatecmder "github.com/papercomputeco/apm/cmd/apm/generate"
	initcmder "github.com/papercomputeco/apm/cmd/apm/init"
	seedcmder "github.com/papercomputeco/apm/cmd/apm/seed"
	servecmder "github.com/papercomputeco/apm/cmd/apm/serve"
	statscmder "github.com/papercomputeco/apm/cmd/apm/stats"
	statuscmder "github.com/papercomputeco/apm/cmd/apm/status"
	versioncmder "github.com/papercomputeco/apm/cmd/version"
)

const apmLongDesc string = `apm turns CRM signups into go-to-market briefs.

A team of analysis agents profiles the ideal customer, segments the user
base, drafts messaging and critiques the result. apm stores every brief and
lets you refine it with feedback.

Run services using:
  apm serve api      Run the API server
  apm serve mock     Run the mock analysis service
  apm serve          Run both together

Then, against a running API:
  apm seed           Import the mock CRM users
  apm generate       Generate a brief with live agent progress
  apm brief          Show the latest brief`

const apmShortDesc string = "apm - AI product marketing briefs"

func NewAPMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apm",
		Short:         apmShortDesc,
		Long:          apmLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .apm configuration directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(connectcmder.NewConnectCmd())
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(briefcmder.NewBriefCmd())
	cmd.AddCommand(statscmder.NewStatsCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
