// Package cli implements the autosales command: offline rendering and
// terminal summaries of the dashboard reports.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"autosales-dashboard/internal/config"
	"autosales-dashboard/internal/models"
	"autosales-dashboard/internal/observability"
	"autosales-dashboard/internal/services"
)

const (
	version     = "1.0.0"
	loadTimeout = 30 * time.Second
)

var styles = struct {
	Bold  lipgloss.Style
	Title lipgloss.Style
	Muted lipgloss.Style
}{
	Bold:  lipgloss.NewStyle().Bold(true),
	Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).MarginTop(1),
	Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
}

// options are the flags shared by every subcommand.
type options struct {
	reportType string
	year       int
	csvFile    string
	logLevel   string
}

func (o *options) selection() models.Selection {
	year := ""
	if o.year != 0 {
		year = strconv.Itoa(o.year)
	}
	return models.NewSelection(resolveReportType(o.reportType), year)
}

// resolveReportType accepts the short names yearly and recession as well as
// the full dropdown labels.
func resolveReportType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yearly":
		return string(models.ReportYearly)
	case "recession":
		return string(models.ReportRecession)
	default:
		return s
	}
}

// loadReports reads the dataset the same way the server does, with --csv
// taking precedence over the configured source.
func (o *options) loadReports(ctx context.Context, stderr io.Writer) (*services.Reports, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.csvFile != "" {
		cfg.Source.File = o.csvFile
	}

	logger := observability.NewLoggerTo(stderr, config.LoggerConfig{Level: o.logLevel, Format: "text"})

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	dataset, err := services.NewLoader(cfg.Source, logger).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sales data: %w", err)
	}
	return services.NewReports(dataset, logger), nil
}

func (o *options) loggerTo(w io.Writer) *slog.Logger {
	return observability.NewLoggerTo(w, config.LoggerConfig{Level: o.logLevel, Format: "text"})
}

// NewRootCommand builds the autosales command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "autosales",
		Short:   "Automobile sales statistics from the command line",
		Version: version,
		Long: `Builds the same reports as the dashboard without starting a server.
Charts can be written to disk as SVG or PNG, exported to a workbook,
or summarised as tables in the terminal.`,
		Example: `  # Recession charts as PNG files
  $ autosales render --type recession --out charts --format png

  # Yearly charts for 1990 plus a workbook
  $ autosales render --type yearly --year 1990 --out charts --xlsx sales.xlsx

  # Aggregated values in the terminal
  $ autosales summary --type yearly --year 2005`,
		SilenceUsage: true,
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.reportType, "type", "t", "", `report type: "yearly", "recession" or the full label`)
	flags.IntVarP(&opts.year, "year", "y", 0, "year for yearly reports")
	flags.StringVar(&opts.csvFile, "csv", "", "read sales data from a local CSV file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRenderCmd(opts))
	rootCmd.AddCommand(newSummaryCmd(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// printFallback reports an incomplete selection. It is not an error.
func printFallback(w io.Writer, report models.Report) {
	fmt.Fprintln(w, styles.Muted.Render(report.Message))
}
