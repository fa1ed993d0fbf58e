package main

import (
	"os"

	"github.com/parlatech/plenum/internal/client"
	"github.com/spf13/cobra"
)

var (
	httpURL    string
	authToken  string
	jsonOutput bool

	engineClient client.EngineClient
)

func defaultHTTPURL() string {
	if s := os.Getenv("PLENUM_HTTP_URL"); s != "" {
		return s
	}
	if u := activeChainURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("PLENUM_AUTH_TOKEN"); s != "" {
		return s
	}
	return activeChainToken()
}

var rootCmd = &cobra.Command{
	Use:   "plenum <command>",
	Short: "CLI client for the plenum voting engine",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		engineClient = client.NewHTTPClient(httpURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if engineClient != nil {
			engineClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "engine HTTP URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for authentication")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sessions", Title: "Sessions:"},
		&cobra.Group{ID: "laws", Title: "Laws:"},
		&cobra.Group{ID: "votes", Title: "Votes:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Sessions
	rootCmd.AddCommand(sessionCmd)

	// Laws
	rootCmd.AddCommand(lawCmd)

	// Votes
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(eligibilityCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(chainCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
