package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"autosales-dashboard/internal/charts"
)

type renderOptions struct {
	outDir string
	format string
	xlsx   string
}

func newRenderCmd(opts *options) *cobra.Command {
	ro := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write report charts to image files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, ro)
		},
	}

	cmd.Flags().StringVarP(&ro.outDir, "out", "o", ".", "output directory")
	cmd.Flags().StringVarP(&ro.format, "format", "f", "svg", "image format (svg or png)")
	cmd.Flags().StringVar(&ro.xlsx, "xlsx", "", "also export the aggregated data to this workbook")

	return cmd
}

func runRender(cmd *cobra.Command, opts *options, ro *renderOptions) error {
	format, err := charts.ParseFormat(ro.format)
	if err != nil {
		return err
	}

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

	renderer := charts.NewRenderer(opts.loggerTo(cmd.ErrOrStderr()))
	images, err := renderer.RenderAll(ctx, report.Charts, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(ro.outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	for i, c := range report.Charts {
		path := filepath.Join(ro.outDir, fmt.Sprintf("chart-%d.%s", c.Index, format))
		if err := os.WriteFile(path, images[i], 0o644); err != nil {
			return fmt.Errorf("write chart %d: %w", c.Index, err)
		}
		fmt.Fprintf(out, "%s %s\n", styles.Bold.Render(path), c.Title)
	}

	if ro.xlsx != "" {
		if err := writeWorkbook(ro.xlsx, report); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s workbook with %d sheets\n", styles.Bold.Render(ro.xlsx), len(report.Charts))
	}

	return nil
}
