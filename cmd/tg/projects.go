package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/ui"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Short:   "List projects",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if c := remoteClient(); c != nil {
			ps, err := c.ListProjects(context.Background())
			if err != nil {
				return err
			}
			return output(ps, func(w io.Writer) error { return printProjects(w, ps) })
		}
		return withService(func(ctx context.Context, svc *project.Service) error {
			ps, err := svc.Projects(ctx)
			if err != nil {
				return err
			}
			return output(ps, func(w io.Writer) error { return printProjects(w, ps) })
		})
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project with its graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(ctx context.Context, svc *project.Service) error {
			if err := svc.DeleteProject(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		})
	},
}

func init() {
	projectsCmd.AddCommand(projectsDeleteCmd)
}

func printProjects(w io.Writer, ps []*model.Project) error {
	if len(ps) == 0 {
		fmt.Fprintln(w, ui.RenderMuted("No projects. Run `tg process <dir>` to create one."))
		return nil
	}
	t := ui.NewTable("ID", "NAME", "UPDATED", "DIRECTORY")
	for _, p := range ps {
		id := p.ID
		if id == projectID {
			id = ui.RenderAccent(id)
		}
		t.Row(id, p.Name, p.UpdatedAt.Local().Format("2006-01-02 15:04"), ui.RenderMuted(p.Directory))
	}
	return t.Render(w)
}
