package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/quizlens/internal/relay"
)

var (
	relayTokenSubject string
	relayTokenTTL     time.Duration
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay server utilities",
}

var relayTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the relay and analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("relay-token"); err != nil {
			return err
		}
		ttl := relayTokenTTL
		if ttl == 0 {
			ttl = time.Duration(cfg.Relay.TokenTTLHours) * time.Hour
		}
		token, err := relay.IssueToken(cfg.Relay.Secret, relayTokenSubject, ttl)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	relayTokenCmd.Flags().StringVar(&relayTokenSubject, "subject", "quizlens", "token subject")
	relayTokenCmd.Flags().DurationVar(&relayTokenTTL, "ttl", 0, "token lifetime (default from config)")
	relayCmd.AddCommand(relayTokenCmd)
	rootCmd.AddCommand(relayCmd)
}
