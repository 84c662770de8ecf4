// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already opened database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.db)
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	return queryCreateProject(ctx, s.db, p)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.db, id)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	return queryDeleteProject(ctx, s.db, id)
}

func (s *PostgresStore) LoadGraph(ctx context.Context, projectID string) (*model.GraphData, error) {
	return queryLoadGraph(ctx, s.db, projectID)
}

// SaveGraph replaces the project's graph inside a single transaction.
func (s *PostgresStore) SaveGraph(ctx context.Context, projectID string, data *model.GraphData) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.SaveGraph(ctx, projectID, data)
	})
}

func (s *PostgresStore) DocumentHashes(ctx context.Context, projectID string) (map[string]string, error) {
	return queryDocumentHashes(ctx, s.db, projectID)
}

func (s *PostgresStore) SetDocumentHash(ctx context.Context, projectID, path, hash string) error {
	return querySetDocumentHash(ctx, s.db, projectID, path, hash)
}

func (s *PostgresStore) DeleteDocumentHash(ctx context.Context, projectID, path string) error {
	return queryDeleteDocumentHash(ctx, s.db, projectID, path)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
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

// Compile-time check that txStore implements store.Store.
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

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
