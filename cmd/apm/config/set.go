package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/pkg/cliui"
)

const setLongDesc string = `Set a configuration value.

Writes the key to config.toml in the .apm/ directory, creating the file
when needed. Values are validated before they are written: durations must
parse, analysis.user_limit must be positive, and list keys take comma
separated values.

Examples:
  apm config set storage.driver memory
  apm config set analysis.timeout 90s
  apm config set api.cors_origins http://localhost:5173,https://app.example.com`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "set <key> <value>",
		Short:             setShortDesc,
		Long:              setLongDesc,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(args[0], args[1], configDir)
		},
	}

	return cmd
}

func runSet(key, value, configDir string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := open(configDir)
	if err != nil {
		return err
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Printf("  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	return nil
}
