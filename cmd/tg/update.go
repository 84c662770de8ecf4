package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

var completeCmd = &cobra.Command{
	Use:     "complete <id|search term>",
	Short:   "Mark the single matching item completed",
	GroupID: "workflow",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		if c := remoteClient(); c != nil {
			return showChange(completeRemote(context.Background(), c, term))
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			return showChange(svc.CompleteMatching(ctx, projectID, term))
		})
	},
}

var statusCmd = &cobra.Command{
	Use:       "status <id> <status>",
	Short:     "Set a node's status",
	GroupID:   "workflow",
	Args:      cobra.ExactArgs(2),
	ValidArgs: statusNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.Status(args[1])
		if c := remoteClient(); c != nil {
			return showChange(c.UpdateStatus(context.Background(), projectID, args[0], status))
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			return showChange(svc.UpdateStatus(ctx, projectID, args[0], status))
		})
	},
}

// showChange prints a status change, listing the candidates when a search
// term was ambiguous.
func showChange(change *project.StatusChange, err error) error {
	var amb *project.AmbiguousError
	if errors.As(err, &amb) {
		return ambiguity(amb)
	}
	if err != nil {
		return err
	}
	return output(change, func(w io.Writer) error { return printChange(w, change) })
}

var conditionCmd = &cobra.Command{
	Use:     "condition <id> <true|false|unset>",
	Short:   "Record whether a condition applies",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		met, err := parseCondition(args[1])
		if err != nil {
			return err
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			changed, err := svc.SetCondition(ctx, projectID, args[0], met)
			if err != nil {
				return err
			}
			return output(map[string]any{"node_id": args[0], "met": met, "changed": changed}, func(w io.Writer) error {
				fmt.Fprintf(w, "Condition %s set to %s; %d dependent nodes changed\n", args[0], args[1], changed)
				return nil
			})
		})
	},
}

var notesCmd = &cobra.Command{
	Use:     "notes <id> <text>",
	Short:   "Replace a node's notes",
	GroupID: "workflow",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *project.Service) error {
			if err := svc.SetNotes(ctx, projectID, args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Printf("Notes updated for %s\n", args[0])
			return nil
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:     "merge <keep-id> <drop-id>",
	Short:   "Merge a duplicate node into another",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *project.Service) error {
			kept, err := svc.Merge(ctx, projectID, args[0], args[1])
			if err != nil {
				return err
			}
			return output(kept, func(w io.Writer) error {
				fmt.Fprintf(w, "Merged %s into %s\n\n", args[1], args[0])
				printNode(w, kept)
				return nil
			})
		})
	},
}

func statusNames() []string {
	names := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		names[i] = s.String()
	}
	return names
}

// parseCondition maps "unset" to nil and anything strconv.ParseBool
// accepts to a value.
func parseCondition(s string) (*bool, error) {
	if strings.EqualFold(s, "unset") || strings.EqualFold(s, "unknown") {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid condition value %q (want true, false or unset)", s)
	}
	return &v, nil
}

func ambiguity(amb *project.AmbiguousError) error {
	t := ui.NewTable("ID", "TYPE", "TITLE")
	for _, n := range amb.Candidates {
		t.Row(n.ID, n.Type.String(), n.Title)
	}
	var b strings.Builder
	_ = t.Render(&b)
	return fmt.Errorf("%q matches %d items, use an ID:\n%s", amb.Term, len(amb.Candidates), b.String())
}

func printChange(w io.Writer, c *project.StatusChange) error {
	fmt.Fprintf(w, "%s %s: %s → %s\n", ui.Checkbox(c.Node.Status == model.StatusCompleted),
		c.Node.Title, c.OldStatus, ui.RenderStatus(string(c.Node.Status)))
	if len(c.Unblocked) > 0 {
		fmt.Fprintf(w, "Unblocked %d items: %s\n", len(c.Unblocked), strings.Join(c.Unblocked, ", "))
	}
	if c.RuledOut > 0 {
		fmt.Fprintf(w, "%d nodes changed applicability\n", c.RuledOut)
	}
	return nil
}
