package todo

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	actionableLimit  = 10
	blockerLimit     = 3
	descriptionLimit = 100
)

// Markdown renders the full to-do report.
func (gen *Generator) Markdown() string {
	categories := gen.Generate()
	summary := gen.summarize(categories)

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# Tender Requirements To-Do List")
	line("")
	line("## Summary")
	line("- **Total Items:** %d", summary.TotalItems)
	line("- **Completed:** %d (%.1f%%)", summary.CompletedItems, summary.CompletionPercentage)
	line("- **Critical Items:** %d (%d done)", summary.CriticalItems, summary.CriticalCompleted)
	line("- **Ready to Work On:** %d", summary.ActionableNow)
	line("")

	if critical := gen.CriticalItems(); len(critical) > 0 {
		line("## Critical Items (Must Complete)")
		line("")
		for _, it := range critical {
			line("- ⚠️ **%s**", it.Title)
			if it.Description != "" {
				line("  - %s", shorten(it.Description, descriptionLimit))
			}
		}
		line("")
	}

	if actionable := gen.ActionableNow(); len(actionable) > 0 {
		line("## Ready to Work On Now")
		line("")
		for _, it := range actionable[:min(len(actionable), actionableLimit)] {
			line("- [ ] **%s** [%s]", it.Title, it.Priority)
			if it.SourceDocument != "" {
				line("  - Source: %s", it.SourceDocument)
			}
		}
		line("")
	}

	for _, c := range categories {
		line("## %s", c.Name)
		line("*%d/%d completed (%.1f%%)*", c.Completed(), c.Total(), c.Percentage())
		line("")
		for _, it := range c.Items {
			check := " "
			if it.Completed() {
				check = "x"
			}
			line("- [%s] %s %s", check, priorityMarker(it.Priority), it.Title)
			if len(it.BlockedBy) > 0 {
				line("  - ⏸️ Blocked by: %s", strings.Join(it.BlockedBy[:min(len(it.BlockedBy), blockerLimit)], ", "))
			}
			if it.Deadline != nil {
				line("  - 📅 Deadline: %s", it.Deadline.Format("2006-01-02"))
			}
		}
		line("")
	}
	return b.String()
}

// HTML renders the markdown report as an HTML fragment.
func (gen *Generator) HTML() (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(gen.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render todo html: %w", err)
	}
	return buf.String(), nil
}

func priorityMarker(p Priority) string {
	switch p {
	case PriorityCritical:
		return "🔴"
	case PriorityHigh:
		return "🟡"
	default:
		return "⚪"
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
