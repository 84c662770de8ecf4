package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tendergraph/internal/events"
	"github.com/alfredjeanlab/tendergraph/internal/mcptools"
	"github.com/alfredjeanlab/tendergraph/internal/server"
	tgsync "github.com/alfredjeanlab/tendergraph/internal/sync"
)

// healthInterval is how often the store is pinged for gRPC health.
const healthInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the HTTP, gRPC and MCP servers",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hub := server.NewEventHub()
		a, err := openApp(appOptions{
			extractor: true,
			wrap:      func(p events.Publisher) events.Publisher { return hub.Publisher(p) },
		})
		if err != nil {
			return err
		}
		defer a.Close()
		if cfg.NATSURL == "" {
			logger.Info("events disabled (TG_NATS_URL not set)")
		} else {
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		}

		mcpServer := mcptools.NewServer(a.svc, version)
		srv := server.New(a.svc,
			server.WithEventHub(hub),
			server.WithMCP(mcptools.HTTPHandler(mcpServer)),
			server.WithLogger(logger))
		grpcServer, healthServer := server.NewGRPCServer(cfg.AuthToken, logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()
		go server.WatchStore(ctx, healthServer, a.store, healthInterval, logger)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
				stop()
			}
		}()

		scheduler := startSync(a)

		logger.Info("tendergraph server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"auth", cfg.AuthToken != "",
		)

		<-ctx.Done()
		logger.Info("shutting down")

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	},
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured.
func startSync(a *app) *tgsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []tgsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := tgsync.NewS3Destination(context.Background(),
			cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, tgsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}
	scheduler := tgsync.NewScheduler(a.store, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Short:   "Serve the MCP tools on stdin/stdout",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		return mcptools.RunStdio(ctx, mcptools.NewServer(a.svc, version))
	},
}
