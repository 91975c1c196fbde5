package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"autosales-dashboard/internal/models"
)

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print each chart's aggregated values as a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			reports, err := opts.loadReports(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			report, err := reports.Build(ctx, opts.selection())
			if err != nil {
				return err
			}
			if report.IsFallback() {
				printFallback(out, report)
				return nil
			}

			for _, c := range report.Charts {
				fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%d. %s", c.Index, c.Title)))
				fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("%s, %d rows", subsetLabel(c.Subset), c.Subset.Rows)))
				fmt.Fprintln(out, chartTable(c))
			}
			return nil
		},
	}
}

func subsetLabel(s models.Subset) string {
	if s.Filter == "" {
		return "all rows"
	}
	return s.Filter
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func chartTable(c models.Chart) string {
	headers := []string{c.XLabel, c.YLabel}
	if c.Kind == models.ChartGroupedBar {
		headers = []string{"Vehicle Type", c.XLabel, c.YLabel}
	}

	rows := make([][]string, 0, len(c.Points))
	for _, p := range c.Points {
		if c.Kind == models.ChartGroupedBar {
			rows = append(rows, []string{p.Label, formatValue(p.X), formatValue(p.Value)})
			continue
		}
		rows = append(rows, []string{p.Label, formatValue(p.Value)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			if col > 0 {
				return style.Align(lipgloss.Right)
			}
			return style
		})

	return t.Render()
}
