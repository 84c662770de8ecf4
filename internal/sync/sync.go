// Package sync backs up project graphs as JSONL to S3 and git.
package sync

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/store"
)

// ProjectPlaceholder in an object key or file name is replaced by the
// project ID.
const ProjectPlaceholder = "{project}"

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write stores the JSONL export of one project.
	Write(ctx context.Context, project string, data []byte) error
}

// ObjectName expands the project placeholder in template. Templates without
// the placeholder get "-<project>" inserted before the extension so that
// projects never overwrite each other.
func ObjectName(template, project string) string {
	if strings.Contains(template, ProjectPlaceholder) {
		return strings.ReplaceAll(template, ProjectPlaceholder, project)
	}
	ext := path.Ext(template)
	return strings.TrimSuffix(template, ext) + "-" + project + ext
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports every project from the
// store to the given destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports each project and writes it to every destination. It
// returns the number of failed writes.
func (s *Scheduler) SyncOnce(ctx context.Context) int {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		s.logger.Error("sync list projects failed", "err", err)
		return len(s.destinations)
	}

	failed := 0
	var total int
	for _, p := range projects {
		var buf bytes.Buffer
		if err := ExportJSONL(ctx, s.store, &buf, p.ID); err != nil {
			s.logger.Error("sync export failed", "project", p.ID, "err", err)
			failed += len(s.destinations)
			continue
		}
		total += buf.Len()
		for _, dest := range s.destinations {
			if err := dest.Write(ctx, p.ID, buf.Bytes()); err != nil {
				s.logger.Error("sync destination write failed", "destination", dest.Name(), "project", p.ID, "err", err)
				failed++
			}
		}
	}

	s.logger.Info("sync completed", "projects", len(projects), "destinations", len(s.destinations), "bytes", total, "failed", failed)
	return failed
}
