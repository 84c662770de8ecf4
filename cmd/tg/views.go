package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/client"
	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/todo"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

// withService opens the app for a read or write command.
func withService(fn func(ctx context.Context, svc *project.Service) error) error {
	a, err := openApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a.svc)
}

// itemsCommand builds a view command that prints one list of items.
func itemsCommand(use, short string, remote client.View, view func(*todo.Generator) []*todo.Item) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		GroupID: "views",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c := remoteClient(); c != nil {
				items, err := c.View(context.Background(), projectID, remote)
				if err != nil {
					return err
				}
				return output(items, func(w io.Writer) error { return printItems(w, items) })
			}
			return withService(func(ctx context.Context, svc *project.Service) error {
				gen, err := svc.Todos(ctx, projectID)
				if err != nil {
					return err
				}
				items := view(gen)
				return output(items, func(w io.Writer) error { return printItems(w, items) })
			})
		},
	}
}

var (
	criticalCmd   = itemsCommand("critical", "List open critical items", client.ViewCritical, (*todo.Generator).CriticalItems)
	actionableCmd = itemsCommand("actionable", "List items that can be done now", client.ViewActionable, (*todo.Generator).ActionableNow)
	deadlinesCmd  = itemsCommand("deadlines", "List unfinished items by deadline", client.ViewDeadlines, (*todo.Generator).ByDeadline)
)

var todoCmd = &cobra.Command{
	Use:     "todo",
	Short:   "Show the categorized to-do list",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		where, _ := cmd.Flags().GetString("where")
		if c := remoteClient(); c != nil {
			return remoteTodos(c, where)
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			gen, err := svc.Todos(ctx, projectID)
			if err != nil {
				return err
			}
			if where != "" {
				items, err := gen.Filter(where)
				if err != nil {
					return err
				}
				return output(items, func(w io.Writer) error { return printItems(w, items) })
			}
			categories := gen.Generate()
			return output(categories, func(w io.Writer) error { return printCategories(w, categories) })
		})
	},
}

func init() {
	todoCmd.Flags().StringP("where", "w", "", `CEL filter, e.g. 'priority == "CRITICAL" && !blocked'`)
}

var summaryCmd = &cobra.Command{
	Use:     "summary",
	Short:   "Show overall and per-category progress",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if c := remoteClient(); c != nil {
			t, err := c.Todos(context.Background(), projectID)
			if err != nil {
				return err
			}
			return output(t.Summary, func(w io.Writer) error { return printSummary(w, t.Summary) })
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			gen, err := svc.Todos(ctx, projectID)
			if err != nil {
				return err
			}
			s := gen.Summary()
			return output(s, func(w io.Writer) error { return printSummary(w, s) })
		})
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show graph statistics",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *project.Service) error {
			st, err := svc.Stats(ctx, projectID)
			if err != nil {
				return err
			}
			return output(st, func(w io.Writer) error {
				fmt.Fprintf(w, "Nodes:      %d\n", st.Nodes)
				fmt.Fprintf(w, "Edges:      %d\n", st.Edges)
				fmt.Fprintf(w, "Documents:  %d\n", st.Documents)
				fmt.Fprintf(w, "Completion: %.1f%%\n\n", st.Completion.CompletionPercentage)
				t := ui.NewTable("TYPE", "COUNT")
				for _, typ := range model.NodeTypes {
					if n := st.ByType[typ]; n > 0 {
						t.Row(typ.String(), fmt.Sprint(n))
					}
				}
				return t.Render(w)
			})
		})
	},
}

var criticalPathCmd = &cobra.Command{
	Use:     "critical-path",
	Short:   "Show the nodes most others wait on, with their dependents",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withService(func(ctx context.Context, svc *project.Service) error {
			g, err := svc.Graph(ctx, projectID)
			if err != nil {
				return err
			}
			path := g.CriticalPath()
			if limit > 0 && len(path) > limit {
				path = path[:limit]
			}
			return output(path, func(w io.Writer) error {
				if len(path) == 0 {
					fmt.Fprintln(w, ui.RenderMuted("Nothing depends on anything yet."))
					return nil
				}
				roots := make([]*ui.TreeNode, 0, len(path))
				for _, cn := range path {
					root := &ui.TreeNode{Label: fmt.Sprintf("%s %s %s",
						ui.RenderBold(cn.Node.Title),
						ui.RenderStatus(string(cn.Node.Status)),
						ui.RenderMuted(fmt.Sprintf("(%d waiting)", cn.Dependents)))}
					for _, dep := range g.Dependents(cn.Node.ID) {
						root.Children = append(root.Children, &ui.TreeNode{
							Label: fmt.Sprintf("%s %s", dep.Title, ui.RenderStatus(string(dep.Status))),
						})
					}
					roots = append(roots, root)
				}
				return ui.RenderTree(w, roots)
			})
		})
	},
}

func init() {
	criticalPathCmd.Flags().IntP("limit", "n", 10, "maximum number of root nodes")
}

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	Short:   "Find nodes by title or description",
	GroupID: "views",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if c := remoteClient(); c != nil {
			nodes, err := c.SearchNodes(context.Background(), projectID, args[0])
			if err != nil {
				return err
			}
			return output(nodes, func(w io.Writer) error { return printNodes(w, nodes) })
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			g, err := svc.Graph(ctx, projectID)
			if err != nil {
				return err
			}
			nodes := g.FindNodes(args[0])
			return output(nodes, func(w io.Writer) error { return printNodes(w, nodes) })
		})
	},
}

func printNodes(w io.Writer, nodes []*model.Node) error {
	t := ui.NewTable("ID", "TYPE", "STATUS", "TITLE")
	for _, n := range nodes {
		t.Row(ui.RenderMuted(n.ID), n.Type.String(), ui.RenderStatus(string(n.Status)), ui.Truncate(n.Title, 60))
	}
	if err := t.Render(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d nodes\n", len(nodes))
	return nil
}
