// Command auctioneer runs the auction server described by a TOML
// configuration file: it binds a listener, waits for bidders, and
// drives the configured schedule to completion.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "auctioneer",
	Short: "Runs a scheduled auction server",
	Long:  "auctioneer binds a TCP listener, waits for bidders, and drives a configured schedule of auctions to completion.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
