package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"vehicledetect/internal/client"
)

func newHistoryCmd(newClient func() *client.Client) *cobra.Command {
	var (
		limit    int
		page     int
		category string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent detection requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newClient().History(cmd.Context(), category, limit, page)
			if err != nil {
				return fmt.Errorf("error listing detection history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(data.Detections) == 0 {
				fmt.Fprintln(out, "No detections found.")
				return nil
			}

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"ID", "File", "Category", "Result", "Confidence", "Duration", "Error", "Created At"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)

			for _, d := range data.Detections {
				table.Append([]string{
					strconv.FormatInt(d.ID, 10),
					d.Filename,
					d.Category,
					strconv.FormatBool(d.Result),
					strconv.FormatFloat(d.Confidence, 'f', 2, 64),
					fmt.Sprintf("%dms", d.DurationMs),
					d.Error,
					d.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()

			fmt.Fprintf(out, "Page %d of %d (%d total)\n", data.CurrentPage, data.TotalPages, data.Length)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of detections to show")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page of results to show")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only show detections for this category")
	return cmd
}

func newStatsCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the detection history per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := newClient().Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("error reading detection stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total requests: %d (failed: %d)\n", stats.Total, stats.Failed)

			categories := make([]string, 0, len(stats.PerCategory))
			for c := range stats.PerCategory {
				categories = append(categories, c)
			}
			sort.Strings(categories)

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Category", "Requests", "Found"})
			table.SetBorder(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, c := range categories {
				table.Append([]string{
					c,
					strconv.Itoa(stats.PerCategory[c]),
					strconv.Itoa(stats.Positive[c]),
				})
			}
			table.Render()
			return nil
		},
	}
}
