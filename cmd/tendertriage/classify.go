package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tendertriage/internal/adapters/snapshot"
	"tendertriage/internal/triage"
	"tendertriage/pkg/domain"
)

func newClassifyCmd(c *cli) *cobra.Command {
	var (
		export bool
		key    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Run the cascade once and print a per-pass summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.svc.Classify(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderReport(out, report)
			renderCounts(out, a.svc.Store().Counts())

			if !export && key == "" {
				return nil
			}
			exporter := &snapshot.Exporter{Store: a.blobs, Logger: c.logger.Named("snapshot")}
			info, err := exporter.Export(ctx, key, snapshot.Format(format), a.svc.Store().Snapshot(), report)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "exported %d records to %s:%s\n", a.svc.Store().Len(), a.blobs.Driver(), info.Key)
			return err
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "write the classified records to the blob store")
	cmd.Flags().StringVar(&key, "export-key", "", "blob key for the export (implies --export)")
	cmd.Flags().StringVar(&format, "format", string(snapshot.FormatCSV), "export format: csv or json")
	return cmd
}

func renderReport(w io.Writer, report triage.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("run " + report.RunID)
	t.AppendHeader(table.Row{"Pass", "Band", "Stamp", "Working set", "Flagged", "Stamped", "Locked"})
	for _, p := range report.Passes {
		stamp := p.Stamp
		if stamp == "" {
			stamp = "-"
		}
		t.AppendRow(table.Row{p.Pass, p.Band.String(), stamp, p.WorkingSet, p.Flagged, p.Stamped, p.Locked})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", report.Stamped, ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func renderCounts(w io.Writer, counts map[domain.Status]int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Status", "Records"})
	total := 0
	for _, s := range domain.Statuses() {
		t.AppendRow(table.Row{s.String(), counts[s]})
		total += counts[s]
	}
	t.AppendFooter(table.Row{"Total", total})
	t.Render()
}
