// Package sqlite implements the store.Store interface backed by an embedded
// SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements store.Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New opens (creating if needed) the SQLite database at path and runs any
// pending migrations.
func New(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.db)
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p *model.Project) error {
	return queryCreateProject(ctx, s.db, p)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.db, id)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	return queryDeleteProject(ctx, s.db, id)
}

func (s *SQLiteStore) LoadGraph(ctx context.Context, projectID string) (*model.GraphData, error) {
	return queryLoadGraph(ctx, s.db, projectID)
}

// SaveGraph replaces the project's graph inside a single transaction.
func (s *SQLiteStore) SaveGraph(ctx context.Context, projectID string, data *model.GraphData) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.SaveGraph(ctx, projectID, data)
	})
}

func (s *SQLiteStore) DocumentHashes(ctx context.Context, projectID string) (map[string]string, error) {
	return queryDocumentHashes(ctx, s.db, projectID)
}

func (s *SQLiteStore) SetDocumentHash(ctx context.Context, projectID, path, hash string) error {
	return querySetDocumentHash(ctx, s.db, projectID, path, hash)
}

func (s *SQLiteStore) DeleteDocumentHash(ctx context.Context, projectID, path string) error {
	return queryDeleteDocumentHash(ctx, s.db, projectID, path)
}

// RunInTransaction runs fn inside a transaction, committing on success and
// rolling back on error.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.tx)
}

func (s *txStore) CreateProject(ctx context.Context, p *model.Project) error {
	return queryCreateProject(ctx, s.tx, p)
}

func (s *txStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.tx, id)
}

func (s *txStore) DeleteProject(ctx context.Context, id string) error {
	return queryDeleteProject(ctx, s.tx, id)
}

func (s *txStore) LoadGraph(ctx context.Context, projectID string) (*model.GraphData, error) {
	return queryLoadGraph(ctx, s.tx, projectID)
}

func (s *txStore) SaveGraph(ctx context.Context, projectID string, data *model.GraphData) error {
	return querySaveGraph(ctx, s.tx, projectID, data)
}

func (s *txStore) DocumentHashes(ctx context.Context, projectID string) (map[string]string, error) {
	return queryDocumentHashes(ctx, s.tx, projectID)
}

func (s *txStore) SetDocumentHash(ctx context.Context, projectID, path, hash string) error {
	return querySetDocumentHash(ctx, s.tx, projectID, path, hash)
}

func (s *txStore) DeleteDocumentHash(ctx context.Context, projectID, path string) error {
	return queryDeleteDocumentHash(ctx, s.tx, projectID, path)
}

// RunInTransaction on a txStore reuses the existing transaction.
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
