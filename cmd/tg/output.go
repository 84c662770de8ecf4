package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// output writes v as JSON or YAML when requested and otherwise calls
// table to render it for humans.
func output(v any, table func(w io.Writer) error) error {
	return writeOutput(os.Stdout, outputFormat, v, table)
}

func writeOutput(w io.Writer, format string, v any, table func(w io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Round-trip through JSON so YAML keys follow the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table(w)
	}
}

func printItems(w io.Writer, items []*todo.Item) error {
	if len(items) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("No items."))
		return nil
	}
	width := max(ui.Width()-60, 30)
	t := ui.NewTable("", "ID", "PRIORITY", "STATUS", "TITLE", "DEADLINE")
	for _, it := range items {
		t.Row(
			ui.Checkbox(it.Completed()),
			ui.RenderMuted(it.ID),
			ui.RenderPriority(it.Priority.String()),
			ui.RenderStatus(string(it.Status)),
			ui.Truncate(it.Title, width),
			formatDeadline(it.Deadline),
		)
	}
	if err := t.Render(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d items\n", len(items))
	return nil
}

func printCategories(w io.Writer, categories []*todo.Category) error {
	for _, c := range categories {
		fmt.Fprintf(w, "%s %s\n", ui.RenderAccent(c.Name),
			ui.RenderMuted(fmt.Sprintf("(%d/%d, %.1f%%)", c.Completed(), c.Total(), c.Percentage())))
		if err := printItems(w, c.Items); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printSummary(w io.Writer, s *todo.Summary) error {
	fmt.Fprintf(w, "Progress:    %d/%d (%.1f%%)\n", s.CompletedItems, s.TotalItems, s.CompletionPercentage)
	fmt.Fprintf(w, "Critical:    %s open, %d done\n", ui.RenderPriority(fmt.Sprint(s.CriticalItems)), s.CriticalCompleted)
	fmt.Fprintf(w, "Actionable:  %d\n\n", s.ActionableNow)
	t := ui.NewTable("CATEGORY", "DONE", "TOTAL", "%")
	for _, c := range s.Categories {
		t.Row(c.Name, fmt.Sprint(c.Completed), fmt.Sprint(c.Total), fmt.Sprintf("%.1f", c.Percentage))
	}
	return t.Render(w)
}

func printNode(w io.Writer, n *model.Node) {
	fmt.Fprintf(w, "ID:          %s\n", n.ID)
	fmt.Fprintf(w, "Type:        %s\n", n.Type)
	fmt.Fprintf(w, "Title:       %s\n", n.Title)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(string(n.Status)))
	if n.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", n.Description)
	}
	if n.SourceDocument != "" {
		fmt.Fprintf(w, "Source:      %s %s\n", n.SourceDocument, n.SourceLocation)
	}
	if n.Deadline != nil {
		fmt.Fprintf(w, "Deadline:    %s\n", formatDeadline(n.Deadline))
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(n.Tags, ", "))
	}
	if n.Notes != "" {
		fmt.Fprintf(w, "Notes:       %s\n", n.Notes)
	}
}

func formatDeadline(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
