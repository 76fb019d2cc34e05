// Package cli implements PopShop's command surface (spec.md §6):
// serve starts the mock/proxy server, validate parse-checks a
// configuration path without serving.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "popshop",
	Short: "popshop mocks and forward-proxies HTTP requests from declarative rule files",
	Long: `popshop is an HTTP mocking and forward-proxying server driven by
declarative YAML rule files. Point it at a rule file or a directory of
rule files; it matches incoming requests against the first applicable
rule and either returns a canned response or forwards the request to
an upstream URL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, printing any error and exiting
// non-zero on failure. Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
