package command

// root.go defines the root command of stockhub-cli and its global flags.

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverAddr string        // Global flag for the TCP server address
	timeout    time.Duration // bound of every read and write
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockhub-cli",
	Short: "stockhub-cli - stockhub back office client",
	Long: `stockhub-cli talks to a stockhub server over its line protocol. It can:
- Log in as an employee or an administrator and remember the login
- Send any action and print the reply
- Mint tokens for the status API

Use "stockhub-cli command --help" to see the flags of each command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8081", "TCP server address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "read/write timeout")
}
