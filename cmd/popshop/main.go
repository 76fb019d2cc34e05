// Command popshop runs the PopShop HTTP mocking and forward-proxying
// server, and validates its YAML rule configuration.
package main

import "github.com/bradcypert/popshop/pkg/cli"

func main() {
	cli.Execute()
}
