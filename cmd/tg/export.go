package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/reader"
	tgsync "github.com/alfredjeanlab/tendergraph/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write the to-do list as markdown or HTML",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asHTML, _ := cmd.Flags().GetBool("html")
		out, _ := cmd.Flags().GetString("output")

		format, name := project.FormatMarkdown, "TODO.md"
		if asHTML {
			format, name = project.FormatHTML, "TODO.html"
		}
		if c := remoteClient(); c != nil {
			report, err := c.Export(context.Background(), projectID, format)
			if err != nil {
				return err
			}
			return writeReport(report, out, filepath.Join(reader.StateDir, name))
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			report, err := svc.Report(ctx, projectID, format)
			if err != nil {
				return err
			}
			dir := "."
			if p, err := svc.GetProject(ctx, projectID); err == nil && p.Directory != "" {
				dir = p.Directory
			}
			return writeReport(report, out, filepath.Join(dir, reader.StateDir, name))
		})
	},
}

// writeReport writes report to out, "-" meaning stdout and "" meaning
// fallback.
func writeReport(report, out, fallback string) error {
	if out == "-" {
		_, err := io.WriteString(os.Stdout, report)
		return err
	}
	if out == "" {
		out = fallback
	}
	if err := writeFile(out, []byte(report)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
	return nil
}

func init() {
	exportCmd.Flags().Bool("html", false, "render HTML instead of markdown")
	exportCmd.Flags().StringP("output", "o", "", `output file ("-" for stdout; default <project dir>/.tender_state/TODO.md)`)
}

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Export projects as JSONL",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		out, _ := cmd.Flags().GetString("output")

		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		var ids []string
		if !all {
			ids = []string{projectID}
		}
		w := io.Writer(os.Stdout)
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return tgsync.ExportJSONL(context.Background(), a.store, w, ids...)
	},
}

func init() {
	backupCmd.Flags().Bool("all", false, "export every project")
	backupCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

var restoreCmd = &cobra.Command{
	Use:     "restore <file>",
	Short:   "Restore projects from a JSONL backup",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := tgsync.ImportJSONL(context.Background(), a.store, r)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Restored %d projects\n", n)
		return nil
	},
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
