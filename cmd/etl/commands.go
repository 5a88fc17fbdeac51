package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/logtower/backend/internal/application/etl"
	"github.com/logtower/backend/internal/bootstrap"
	"github.com/logtower/backend/internal/domain/bulk"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func seedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the working folders, the demo CT-e workbook and the reference workbooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, app *bootstrap.App) error {
				p := app.Config.Paths
				return etl.NewSeeder(p.InputDir, p.BaseDataDir, p.InsightsDir, app.Logger).Seed()
			})
		},
	}
}

func runCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every spreadsheet of the input folder into the star schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				s, err := newStack(app)
				if err != nil {
					return err
				}
				results, err := runETL(ctx, app, s)
				printResults(cmd.OutOrStdout(), results)
				return err
			})
		},
	}
}

func exportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write fato_cte.txt and the dimension files to the insights folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				s, err := newStack(app)
				if err != nil {
					return err
				}
				return runExport(ctx, app, s)
			})
		},
	}
}

func allCmd(opts *rootOptions) *cobra.Command {
	var skipSeed bool
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Seed, run and export in one go",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				if !skipSeed {
					p := app.Config.Paths
					if err := etl.NewSeeder(p.InputDir, p.BaseDataDir, p.InsightsDir, app.Logger).Seed(); err != nil {
						return err
					}
				}
				s, err := newStack(app)
				if err != nil {
					return err
				}
				results, err := runETL(ctx, app, s)
				printResults(cmd.OutOrStdout(), results)
				if err != nil {
					// files that loaded are still exported
					app.Logger.Warn("Some spreadsheets failed", zap.Error(err))
				}
				if exportErr := runExport(ctx, app, s); exportErr != nil {
					return exportErr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Do not create the demo and reference workbooks")
	return cmd
}

func historyCmd(opts *rootOptions) *cobra.Command {
	var (
		status   string
		file     string
		limit    int
		asJSON   bool
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past ETL runs, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := bulk.RunFilter{FileName: file, Limit: limit}
			if status != "" {
				st := bulk.RunStatus(status)
				if !st.IsValid() {
					return fmt.Errorf("invalid status %q", status)
				}
				filter.Status = &st
			}
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) error {
				s, err := newStack(app)
				if err != nil {
					return err
				}
				runs, err := s.runs.FindAll(ctx, filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeRunsJSON(cmd.OutOrStdout(), runs, detailed)
				}
				return writeRunsTable(cmd.OutOrStdout(), runs)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status")
	cmd.Flags().StringVar(&file, "file", "", "Only runs of this spreadsheet")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs, 0 for all")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	cmd.Flags().BoolVar(&detailed, "errors", false, "Include row errors in JSON output")
	return cmd
}

func printResults(w io.Writer, results []*etl.FileResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tTOTAL\tINSERTED\tDUPLICATES\tUPDATED\tFAILED")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.File, r.Status, r.Total, r.Inserted, r.Duplicates, r.Updated, r.Failed)
	}
	_ = tw.Flush()
}

func writeRunsTable(w io.Writer, runs []*bulk.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tMODE\tTOTAL\tINSERTED\tDUPLICATES\tUPDATED\tFAILED\tSTARTED")
	for _, r := range runs {
		started := "-"
		if r.StartedAt != nil {
			started = r.StartedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.FileName, r.Status, r.ConflictMode,
			r.Total, r.Inserted, r.Duplicates, r.Updated, r.Failed, started)
	}
	return tw.Flush()
}

type runJSON struct {
	ID           string             `json:"id"`
	FileName     string             `json:"file"`
	Status       bulk.RunStatus     `json:"status"`
	ConflictMode bulk.ConflictMode  `json:"conflict_mode"`
	Counters     bulk.Counters      `json:"counters"`
	Message      string             `json:"message,omitempty"`
	Truncated    bool               `json:"is_truncated,omitempty"`
	Errors       []bulk.ErrorDetail `json:"errors,omitempty"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
}

func writeRunsJSON(w io.Writer, runs []*bulk.Run, withErrors bool) error {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		item := runJSON{
			ID:           r.ID.String(),
			FileName:     r.FileName,
			Status:       r.Status,
			ConflictMode: r.ConflictMode,
			Counters:     r.Counters,
			Message:      r.Message,
			Truncated:    r.Truncated,
			StartedAt:    r.StartedAt,
			FinishedAt:   r.FinishedAt,
		}
		if withErrors {
			item.Errors = r.ErrorDetails
		}
		out = append(out, item)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
