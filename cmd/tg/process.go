package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/reader"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:     "scan [dir]",
	Short:   "List the tender documents that would be processed",
	GroupID: "extract",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := dirArg(args)
		if err := extractArchives(cmd, dir); err != nil {
			return err
		}
		files, err := reader.Scan(dir)
		if err != nil {
			return err
		}
		return output(files, func(w io.Writer) error {
			t := ui.NewTable("FILE", "TYPE")
			for _, f := range files {
				rel, err := filepath.Rel(dir, f)
				if err != nil {
					rel = f
				}
				t.Row(rel, filepath.Ext(f))
			}
			if err := t.Render(w); err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%d documents\n", len(files))
			return nil
		})
	},
}

var processCmd = &cobra.Command{
	Use:     "process [dir]",
	Short:   "Extract requirements from every document into the graph",
	GroupID: "extract",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.LLMConcurrency
		}
		if err := cfg.RequireLLM(); err != nil {
			return err
		}

		dir, err := filepath.Abs(dirArg(args))
		if err != nil {
			return err
		}
		if err := extractArchives(cmd, dir); err != nil {
			return err
		}
		files, err := reader.Scan(dir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "No supported documents found.")
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := openApp(appOptions{extractor: true})
		if err != nil {
			return err
		}
		defer a.Close()
		if err := ensureProject(ctx, a, dir); err != nil {
			return err
		}

		docs := newReader().ReadAll(ctx, files)
		batch, err := a.svc.Process(ctx, projectID, docs, project.ProcessOptions{
			Full:        full,
			Concurrency: concurrency,
			Progress:    progressPrinter(os.Stderr),
		})
		if err != nil {
			return err
		}
		return output(batch, func(w io.Writer) error { return printBatch(w, batch) })
	},
}

func init() {
	for _, c := range []*cobra.Command{scanCmd, processCmd} {
		c.Flags().Bool("no-unzip", false, "do not unpack .zip archives before scanning")
	}
	processCmd.Flags().Bool("full", false, "re-extract every document, ignoring recorded hashes")
	processCmd.Flags().IntP("concurrency", "c", 0, "parallel model requests (default TG_LLM_CONCURRENCY)")
}

// extractArchives unpacks new .zip bundles below dir unless --no-unzip is
// set.
func extractArchives(cmd *cobra.Command, dir string) error {
	if skip, _ := cmd.Flags().GetBool("no-unzip"); skip {
		return nil
	}
	extracted, err := reader.ExtractArchives(dir, logger)
	if err != nil {
		return err
	}
	for _, d := range extracted {
		fmt.Fprintf(os.Stderr, "Unpacked %s\n", d)
	}
	return nil
}

func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// progressPrinter reports one line per processed document.
func progressPrinter(w io.Writer) func(done, total int, r *model.ExtractionResult) {
	return func(done, total int, r *model.ExtractionResult) {
		name := filepath.Base(r.Document)
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "[%d/%d] %s %s\n", done, total, name, ui.RenderMuted("unchanged"))
		case r.Succeeded():
			fmt.Fprintf(w, "[%d/%d] %s: %d nodes, %d edges\n", done, total, name, r.NodesCreated, r.EdgesCreated)
		default:
			fmt.Fprintf(w, "[%d/%d] %s %s %s\n", done, total, name, ui.RenderPriority("CRITICAL"), r.Error)
		}
	}
}

func printBatch(w io.Writer, b *model.BatchResult) error {
	fmt.Fprintf(w, "Run:          %s\n", b.RunID)
	fmt.Fprintf(w, "Processed:    %d\n", b.Processed)
	fmt.Fprintf(w, "Skipped:      %d\n", b.Skipped)
	fmt.Fprintf(w, "Nodes:        %d\n", b.NodesCreated)
	fmt.Fprintf(w, "Edges:        %d\n", b.EdgesCreated)
	fmt.Fprintf(w, "Placeholders: %d merged\n", b.PlaceholdersMerged)
	fmt.Fprintf(w, "Duration:     %s\n", b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond))
	if len(b.Errors) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.RenderBold(fmt.Sprintf("%d documents failed:", len(b.Errors))))
		for _, e := range b.Errors {
			fmt.Fprintf(w, "  %s: %s\n", filepath.Base(e.Document), e.Error)
		}
	}
	return nil
}
