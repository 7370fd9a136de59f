package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"labelbench/internal/models"
	"labelbench/internal/service"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import samples from a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			result, err := e.workbench.ImportFromFile(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Imported %d samples from %s\n", result.Inserted, args[0])
			if len(result.Failed) > 0 {
				fmt.Printf("Skipped %d invalid rows:\n", len(result.Failed))
				for _, row := range result.Failed {
					fmt.Printf("  row %d (%s): %s\n", row.Position, row.ID, row.Reason)
				}
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var (
		format   string
		decision string
		issue    string
	)
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export annotated samples to a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			out, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", args[0], err)
			}
			defer out.Close()

			filter := service.ExportFilter{
				Decision: decision,
				Issue:    models.IssueType(issue),
			}
			count, err := e.workbench.ExportFiltered(out, format, filter)
			if err != nil {
				return err
			}

			fmt.Printf("Exported %d annotated samples to %s\n", count, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "output format: csv or json")
	cmd.Flags().StringVar(&decision, "decision", "", "filter by decision: accepted or rejected")
	cmd.Flags().StringVar(&issue, "issue", "", "filter by primary issue")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print annotation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			stats, err := e.workbench.GetAnnotationStats()
			if err != nil {
				return err
			}

			fmt.Printf("Total samples:   %d\n", stats.TotalSamples)
			fmt.Printf("Annotated:       %d\n", stats.TotalAnnotated)
			fmt.Printf("Accepted:        %d\n", stats.Accepted)
			fmt.Printf("Rejected:        %d\n", stats.Rejected)
			fmt.Printf("Acceptance rate: %.1f%%\n", stats.AcceptanceRate*100)

			if len(stats.IssueCounts) > 0 {
				fmt.Println("Issues:")
				issues := make([]string, 0, len(stats.IssueCounts))
				for issue := range stats.IssueCounts {
					issues = append(issues, string(issue))
				}
				sort.Slice(issues, func(i, j int) bool {
					ci, cj := stats.IssueCounts[models.IssueType(issues[i])], stats.IssueCounts[models.IssueType(issues[j])]
					if ci != cj {
						return ci > cj
					}
					return issues[i] < issues[j]
				})
				for _, issue := range issues {
					fmt.Printf("  %-20s %d\n", issue, stats.IssueCounts[models.IssueType(issue)])
				}
			}
			return nil
		},
	}
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all samples and annotations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Delete ALL samples and annotations? [y/N] ")
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					fmt.Println("Aborted.")
					return nil
				}
			}

			e, err := bootstrap()
			if err != nil {
				return err
			}
			defer e.close()

			samples, annotations, err := e.workbench.ClearAll()
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d samples and %d annotations\n", samples, annotations)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
