package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bradcypert/popshop/pkg/config"
	"github.com/bradcypert/popshop/pkg/logging"
)

// validateCmd represents the validate command.
var validateCmd = &cobra.Command{
	Use:   "validate <config-path>",
	Short: "Parse-check a configuration path without serving",
	Long: `Parse config-path (a YAML file or a directory of YAML files) and
report the total number of rules found, broken down by mock vs. proxy
disposition. Exits non-zero with a diagnostic if the configuration is
invalid or empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]

	loader := config.NewLoader(logging.Nop())
	rules, err := loader.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	total, mocks, proxies := rules.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules (%d mock, %d proxy)\n", configPath, total, mocks, proxies)
	return nil
}
