package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vehicledetect/internal/client"
)

const defaultServer = "http://localhost:4040"

// NewRootCmd builds the detectctl command tree.
func NewRootCmd() *cobra.Command {
	var server string

	rootCmd := &cobra.Command{
		Use:           "detectctl",
		Short:         "Client for the vehicle detection server",
		Long:          `detectctl uploads images to a running detection server and inspects its history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	serverDefault := os.Getenv("DETECT_SERVER")
	if serverDefault == "" {
		serverDefault = defaultServer
	}
	rootCmd.PersistentFlags().StringVarP(&server, "server", "s", serverDefault, "Base URL of the detection server (env DETECT_SERVER)")

	newClient := func() *client.Client {
		return client.New(server)
	}

	rootCmd.AddCommand(
		newDetectCmd(newClient),
		newHistoryCmd(newClient),
		newStatsCmd(newClient),
		newCategoriesCmd(newClient),
		newHealthCmd(newClient),
	)
	return rootCmd
}

// Execute runs detectctl and exits non-zero on failure.
func Execute() {
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
