package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alfredjeanlab/tendergraph/internal/events"
	"github.com/alfredjeanlab/tendergraph/internal/extract"
	"github.com/alfredjeanlab/tendergraph/internal/llm"
	"github.com/alfredjeanlab/tendergraph/internal/project"
	"github.com/alfredjeanlab/tendergraph/internal/reader"
	"github.com/alfredjeanlab/tendergraph/internal/store"
	"github.com/alfredjeanlab/tendergraph/internal/store/backend"
)

// app bundles what a command needs to talk to the project service.
type app struct {
	store     store.Store
	svc       *project.Service
	publisher events.Publisher
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		logger.Error("error closing publisher", "err", err)
	}
	if err := a.store.Close(); err != nil {
		logger.Error("error closing store", "err", err)
	}
}

type appOptions struct {
	// extractor wires an LLM client; commands that never extract skip it.
	extractor bool
	// wrap decorates the publisher, e.g. to tee events into the SSE hub.
	wrap func(events.Publisher) events.Publisher
}

// openApp opens the configured store and builds the project service. The
// SQLite state directory is created on demand.
func openApp(opts appOptions) (*app, error) {
	if path, ok := strings.CutPrefix(cfg.DatabaseURL, "sqlite://"); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	st, err := backend.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
		publisher = pub
		logger.Debug("events enabled", "nats_url", cfg.NATSURL)
	}
	if opts.wrap != nil {
		publisher = opts.wrap(publisher)
	}

	svcOpts := []project.Option{project.WithPublisher(publisher), project.WithLogger(logger)}
	if opts.extractor {
		ex, err := newExtractor()
		if err != nil {
			publisher.Close()
			st.Close()
			return nil, err
		}
		if ex != nil {
			svcOpts = append(svcOpts, project.WithExtractor(ex))
		}
	}
	return &app{store: st, svc: project.New(st, svcOpts...), publisher: publisher}, nil
}

// newExtractor returns nil when no API key is configured.
func newExtractor() (*extract.Extractor, error) {
	if cfg.LLMAPIKey == "" {
		return nil, nil
	}
	client, err := llm.NewOpenAIClient(llm.Config{
		APIKey:            cfg.LLMAPIKey,
		BaseURL:           cfg.LLMBaseURL,
		Model:             cfg.LLMModel,
		Timeout:           cfg.LLMTimeout,
		RequestsPerSecond: cfg.LLMRPS,
		Burst:             cfg.LLMConcurrency,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("extractor configured", "model", client.Model(), "max_chars", cfg.MaxChars)
	return extract.New(client,
		extract.WithMaxChars(cfg.MaxChars),
		extract.WithLogger(logger)), nil
}

func newReader() *reader.Reader {
	var tika *reader.TikaClient
	if cfg.TikaURL != "" {
		tika = reader.NewTikaClient(cfg.TikaURL, cfg.LLMTimeout)
	}
	return reader.New(tika, logger)
}

// ensureProject creates the current project on first use.
func ensureProject(ctx context.Context, a *app, dir string) error {
	_, err := a.svc.EnsureProject(ctx, projectID, "", dir)
	return err
}
