package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/client"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/server"
)

// remoteClient returns a client for --remote, or nil when commands should
// open the store directly.
func remoteClient() client.Client {
	if remoteURL == "" {
		return nil
	}
	return client.NewHTTPClient(remoteURL, cfg.AuthToken)
}

// remoteTodos prints the categorized list, or the items matching where.
func remoteTodos(c client.Client, where string) error {
	ctx := context.Background()
	if where != "" {
		items, err := c.FilterTodos(ctx, projectID, where)
		if err != nil {
			return err
		}
		return output(items, func(w io.Writer) error { return printItems(w, items) })
	}
	t, err := c.Todos(ctx, projectID)
	if err != nil {
		return err
	}
	return output(t.Categories, func(w io.Writer) error { return printCategories(w, t.Categories) })
}

// completeRemote completes term by node ID, falling back to a search that
// must match exactly one node.
func completeRemote(ctx context.Context, c client.Client, term string) (*project.StatusChange, error) {
	change, err := c.Complete(ctx, projectID, term)
	var apiErr *client.APIError
	if err == nil || !errors.As(err, &apiErr) || !apiErr.NotFound() {
		return change, err
	}
	nodes, err := c.SearchNodes(ctx, projectID, term)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("%w: %q", project.ErrNoMatch, term)
	case 1:
		return c.Complete(ctx, projectID, nodes[0].ID)
	default:
		return nil, &project.AmbiguousError{Term: term, Candidates: nodes}
	}
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check a running server over HTTP and gRPC",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		base := remoteURL
		if base == "" {
			base = "http://" + localAddr(cfg.HTTPAddr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		result := map[string]string{}
		httpStatus, err := client.NewHTTPClient(base, cfg.AuthToken).Health(ctx)
		if err != nil {
			httpStatus = "unreachable: " + err.Error()
		}
		result["http"] = httpStatus

		if grpcAddr == "" {
			grpcAddr = localAddr(cfg.GRPCAddr)
		}
		hc, err := client.NewHealthClient(grpcAddr, cfg.AuthToken)
		if err != nil {
			return err
		}
		defer hc.Close()
		grpcStatus, err := hc.Check(ctx, server.ServiceName)
		if err != nil {
			grpcStatus = "unreachable: " + err.Error()
		}
		result["grpc"] = grpcStatus

		if err := output(result, func(w io.Writer) error {
			fmt.Fprintf(w, "HTTP  %s  %s\n", base, result["http"])
			fmt.Fprintf(w, "gRPC  %s  %s\n", grpcAddr, result["grpc"])
			return nil
		}); err != nil {
			return err
		}
		if httpStatus != "ok" || grpcStatus != "SERVING" {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "gRPC address (default localhost + TG_GRPC_ADDR)")
}

// localAddr points a listen address at the local host.
func localAddr(listen string) string {
	_, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	return net.JoinHostPort("localhost", port)
}
