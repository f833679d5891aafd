package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vehicledetect/internal/client"
)

func newCategoriesCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories the server can detect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().Categories(cmd.Context())
			if err != nil {
				return fmt.Errorf("error listing categories: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, c := range data.Categories {
				if c == data.Default {
					fmt.Fprintf(out, "%s %s\n", c, color.CyanString("(default)"))
					continue
				}
				fmt.Fprintln(out, c)
			}
			return nil
		},
	}
}

func newHealthCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up and its model is loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := newClient().CheckHealth(cmd.Context())
			if err != nil {
				return fmt.Errorf("server unhealthy: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s model=%s workers=%d viewers=%d\n",
				color.GreenString(health.Status), health.ModelFamily, health.Workers, health.Viewers)
			return nil
		},
	}
}
