package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/burrow/internal/report"
	"github.com/FranksOps/burrow/internal/storage"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored search hits",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}

	f := cmd.Flags()
	f.String("engine", "", "only hits from this engine")
	f.String("query", "", "only hits for this query")
	f.Duration("since", 0, "only hits newer than this, e.g. 24h")
	f.Int("limit", 0, "maximum hits to read, 0 for all")
	f.String("format", "text", "output format: text, json or html")
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	backend, err := openBackend(ctx, e.cfg.Storage)
	if err != nil {
		return err
	}
	if backend == nil {
		return errors.New("report needs a storage backend")
	}
	defer backend.Close()

	flags := cmd.Flags()
	filter := storage.Filter{}
	filter.Engine, _ = flags.GetString("engine")
	filter.Query, _ = flags.GetString("query")
	filter.Limit, _ = flags.GetInt("limit")
	if since, _ := flags.GetDuration("since"); since > 0 {
		t := time.Now().Add(-since)
		filter.Since = &t
	}

	hits, err := backend.Query(ctx, filter)
	if err != nil {
		return err
	}
	summary := report.GenerateSummary(hits)
	e.logger.Debug("report generated", "hits", summary.TotalHits)

	w := cmd.OutOrStdout()
	format, _ := flags.GetString("format")
	switch format {
	case "json":
		return report.WriteJSON(w, summary)
	case "html":
		return report.WriteHTML(w, summary)
	case "text", "":
		return report.WriteText(w, summary)
	}
	return fmt.Errorf("unknown report format %q", format)
}
