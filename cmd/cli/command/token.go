package command

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	statusapi "stockhub/internal/microservices/status-api"
)

var (
	tokenSubject string
	tokenAdmin   bool
	tokenExpiry  time.Duration
)

// tokenCmd mints a bearer token for the status API with the server's JWT_SECRET
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a status API token",
	Long:  `Sign a token with JWT_SECRET, read from the environment, for the /sessions endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv("JWT_SECRET")
		if len(secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be set and at least 32 characters long")
		}
		if tokenSubject == "" {
			return fmt.Errorf("--subject is required")
		}
		signed, err := statusapi.NewTokenService(secret, tokenExpiry).Issue(tokenSubject, tokenAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "who the token is for")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", true, "grant the admin claim")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
