package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

// nodeColumns is the column list used for SELECT statements on the nodes table.
const nodeColumns = `id, type, title, description, status, source_document,
	source_location, source_text, checkbox_state, condition_met, deadline,
	confidence, tags, metadata, notes, created_at, updated_at`

// edgeColumns is the column list used for SELECT statements on the edges table.
const edgeColumns = `id, source_id, target_id, type, description, confidence, metadata`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryListProjects(ctx context.Context, db executor) ([]*model.Project, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, directory, created_at, updated_at
		FROM projects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func queryCreateProject(ctx context.Context, db executor, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, directory, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Directory, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func queryGetProject(ctx context.Context, db executor, id string) (*model.Project, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, directory, created_at, updated_at
		FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return p, err
}

func queryDeleteProject(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func queryProjectExists(ctx context.Context, db executor, id string) error {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return err
}

func queryLoadGraph(ctx context.Context, db executor, projectID string) (*model.GraphData, error) {
	if err := queryProjectExists(ctx, db, projectID); err != nil {
		return nil, err
	}

	data := &model.GraphData{Nodes: []*model.Node{}, Edges: []*model.Edge{}}

	rows, err := db.QueryContext(ctx, `SELECT `+nodeColumns+`
		FROM nodes WHERE project_id = $1 ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		data.Nodes = append(data.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.QueryContext(ctx, `SELECT `+edgeColumns+`
		FROM edges WHERE project_id = $1 ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		data.Edges = append(data.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return data, nil
}

// querySaveGraph replaces the stored graph. Callers run it inside a
// transaction.
func querySaveGraph(ctx context.Context, db executor, projectID string, data *model.GraphData) error {
	if err := queryProjectExists(ctx, db, projectID); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM edges WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM nodes WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	if data == nil {
		data = &model.GraphData{}
	}

	for i, n := range data.Nodes {
		tags, err := jsonbValue(n.Tags)
		if err != nil {
			return fmt.Errorf("node %s tags: %w", n.ID, err)
		}
		meta, err := jsonbValue(n.Metadata)
		if err != nil {
			return fmt.Errorf("node %s metadata: %w", n.ID, err)
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO nodes (
				project_id, id, position, type, title, description, status,
				source_document, source_location, source_text, checkbox_state,
				condition_met, deadline, confidence, tags, metadata, notes,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7,
				$8, $9, $10, $11,
				$12, $13, $14, $15, $16, $17,
				$18, $19
			)`,
			projectID, n.ID, i, string(n.Type), n.Title, n.Description, string(n.Status),
			n.SourceDocument, n.SourceLocation, n.SourceText, nullBoolPtr(n.CheckboxState),
			nullBoolPtr(n.ConditionMet), nullTimePtr(n.Deadline), n.Confidence, tags, meta, n.Notes,
			n.CreatedAt, n.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	for i, e := range data.Edges {
		meta, err := jsonbValue(e.Metadata)
		if err != nil {
			return fmt.Errorf("edge %s metadata: %w", e.ID, err)
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO edges (
				project_id, id, position, source_id, target_id, type,
				description, confidence, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			projectID, e.ID, i, e.SourceID, e.TargetID, string(e.Type),
			e.Description, e.Confidence, meta,
		)
		if err != nil {
			return fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}

	_, err := db.ExecContext(ctx, `UPDATE projects SET updated_at = $2 WHERE id = $1`,
		projectID, time.Now().UTC())
	return err
}

func queryDocumentHashes(ctx context.Context, db executor, projectID string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT path, hash FROM document_hashes WHERE project_id = $1`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		hashes[path] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hashes, nil
}

func querySetDocumentHash(ctx context.Context, db executor, projectID, path, hash string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO document_hashes (project_id, path, hash, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, path) DO UPDATE SET hash = $3, updated_at = $4`,
		projectID, path, hash, time.Now().UTC(),
	)
	return err
}

func queryDeleteDocumentHash(ctx context.Context, db executor, projectID, path string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM document_hashes WHERE project_id = $1 AND path = $2`, projectID, path)
	return err
}
