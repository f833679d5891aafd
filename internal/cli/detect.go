package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"vehicledetect/internal/client"
)

func newDetectCmd(newClient func() *client.Client) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "detect <image>...",
		Short: "Ask whether each image contains a vehicle category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			out := cmd.OutOrStdout()
			label := category
			if label == "" {
				label = "default category"
			}

			failed := 0
			for _, path := range args {
				found, err := c.Detect(cmd.Context(), path, category)
				if err != nil {
					fmt.Fprintf(out, "%s %s: %v\n", color.RedString("ERROR"), path, err)
					failed++
					continue
				}
				if found {
					fmt.Fprintf(out, "%s %s: %s found\n", color.GreenString("YES"), path, label)
				} else {
					fmt.Fprintf(out, "%s %s: no %s\n", color.YellowString("NO"), path, label)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d image(s) failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category to look for (car, truck, bicycle, motorcycle); server default when empty")
	return cmd
}
