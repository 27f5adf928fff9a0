package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agenthands/tabgraph/internal/core/jobs"
	"github.com/agenthands/tabgraph/internal/core/model"
	"github.com/agenthands/tabgraph/internal/core/search"
)

func waitAll(ctx context.Context, tasks []*jobs.Task) error {
	var failed int
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			slog.Error("job failed", "job", t.Name, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(tasks))
	}
	return nil
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume every unfinished upload and wait for completion",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, app, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			tasks, err := app.Server.Uploads.ResumeAll(ctx)
			if err != nil {
				return err
			}
			slog.Info("resuming uploads", "count", len(tasks))
			return waitAll(ctx, tasks)
		},
	}
}

// stage copies path into dir; ingestion consumes its input.
func stage(path, dir string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if dir == "" {
		dir = os.TempDir()
	}
	dst := filepath.Join(dir, "tabgraph-"+uuid.NewString()+filepath.Ext(path))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}

func ingestCmd() *cobra.Command {
	var mappings []string
	cmd := &cobra.Command{
		Use:   "ingest NAME FILE",
		Short: "Ingest a delimited file as a new upload and wait for it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, app, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			path, err := stage(args[1], cfg.Ingest.TempDir)
			if err != nil {
				return fmt.Errorf("failed to stage %s: %w", args[1], err)
			}
			upload, task, err := app.Server.Uploads.Start(ctx, args[0], path, mappings)
			if err != nil {
				return err
			}
			slog.Info("ingesting", "upload", upload.Name, "rows", upload.OutOf)
			if err := task.Wait(ctx); err != nil {
				return err
			}
			final, err := app.Server.Uploads.Graph.GetUpload(ctx, upload.Name)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), final)
		},
	}
	cmd.Flags().StringArrayVarP(&mappings, "mapping", "m", nil, "mapping src1|src2:destination:transform... (repeatable)")
	cmd.MarkFlagRequired("mapping")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		p         search.Params
		predicate string
	)
	cmd := &cobra.Command{
		Use:   "search TOKEN...",
		Short: "Run a search and print the records as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, app, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			pred, err := model.ParsePredicate(predicate)
			if err != nil {
				return err
			}
			p.Tokens = args
			p.Predicate = pred
			records, err := app.Server.Search.Search(ctx, p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), model.SearchResult{Records: records})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&predicate, "predicate", "p", "AND", "AND or OR")
	f.StringSliceVarP(&p.Uploads, "upload", "u", nil, "restrict to these uploads")
	f.StringSliceVarP(&p.JoinBy, "join", "j", nil, "join records on these columns")
	f.IntVar(&p.MaxDepth, "max-depth", 0, "extra rows joined per column")
	f.IntVar(&p.Skip, "skip", 0, "results to skip")
	f.IntVar(&p.Limit, "limit", search.DefaultLimit, "maximum results")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
