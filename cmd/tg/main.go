package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/config"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

// version is set by the linker at build time.
var version = "dev"

var (
	projectID    string
	jsonOutput   bool
	outputFormat string
	verbose      bool
	noColor      bool
	remoteURL    string

	cfg    *config.Config
	logger *slog.Logger
)

// defaultProject names the project after the working directory.
func defaultProject() string {
	if s := os.Getenv("TG_PROJECT"); s != "" {
		return s
	}
	wd, err := os.Getwd()
	if err != nil {
		return "default"
	}
	return filepath.Base(wd)
}

var rootCmd = &cobra.Command{
	Use:           "tg <command>",
	Short:         "Turn tender documents into a dependency graph and a to-do list",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		if jsonOutput {
			outputFormat = formatJSON
		}
		switch outputFormat {
		case formatTable, formatJSON, formatYAML:
		default:
			return fmt.Errorf("unknown format %q (must be table, json or yaml)", outputFormat)
		}

		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c
		logger = cfg.NewLogger(os.Stderr, verbose)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", defaultProject(), "project ID")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON (same as --format json)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatTable, "output format (table, json or yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&remoteURL, "remote", os.Getenv("TG_SERVER_URL"), "read and update through a running server at this URL")

	rootCmd.AddGroup(
		&cobra.Group{ID: "extract", Title: "Extraction:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "workflow", Title: "Workflows:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Extraction
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(processCmd)

	// Views
	rootCmd.AddCommand(todoCmd)
	rootCmd.AddCommand(criticalCmd)
	rootCmd.AddCommand(actionableCmd)
	rootCmd.AddCommand(deadlinesCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(criticalPathCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)

	// Workflows
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(conditionCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(mergeCmd)

	// System
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
