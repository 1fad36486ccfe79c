package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/apm/pkg/config"
)

const listLongDesc string = `List all configuration values.

Prints every key with its value from config.toml in the .apm/ directory,
or its default when the file does not set it.

Examples:
  apm config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(configDir)
		},
	}

	return cmd
}

func runList(configDir string) error {
	cfger, err := open(configDir)
	if err != nil {
		return err
	}

	keys := config.ValidConfigKeys()

	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Printf("%-*s = <not set>\n", width, key)
		} else {
			fmt.Printf("%-*s = %q\n", width, key, value)
		}
	}

	return nil
}
