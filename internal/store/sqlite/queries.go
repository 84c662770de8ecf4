package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

const nodeColumns = `id, type, title, description, status, source_document,
	source_location, source_text, checkbox_state, condition_met, deadline,
	confidence, tags, metadata, notes, created_at, updated_at`

const edgeColumns = `id, source_id, target_id, type, description, confidence, metadata`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
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
	return projects, rows.Err()
}

func queryCreateProject(ctx context.Context, db executor, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (id, name, directory, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Directory, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return err
}

func queryGetProject(ctx context.Context, db executor, id string) (*model.Project, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, directory, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, store.ErrNotFound)
	}
	return p, err
}

func queryDeleteProject(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
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
	err := db.QueryRowContext(ctx, `SELECT 1 FROM projects WHERE id = ?`, id).Scan(&one)
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

	nodes, err := db.QueryContext(ctx, `SELECT `+nodeColumns+`
		FROM nodes WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	for nodes.Next() {
		n, err := scanNode(nodes)
		if err != nil {
			nodes.Close()
			return nil, err
		}
		data.Nodes = append(data.Nodes, n)
	}
	err = nodes.Err()
	nodes.Close()
	if err != nil {
		return nil, err
	}

	edges, err := db.QueryContext(ctx, `SELECT `+edgeColumns+`
		FROM edges WHERE project_id = ? ORDER BY position`, projectID)
	if err != nil {
		return nil, err
	}
	defer edges.Close()
	for edges.Next() {
		e, err := scanEdge(edges)
		if err != nil {
			return nil, err
		}
		data.Edges = append(data.Edges, e)
	}
	return data, edges.Err()
}

func querySaveGraph(ctx context.Context, db executor, projectID string, data *model.GraphData) error {
	if err := queryProjectExists(ctx, db, projectID); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM edges WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear edges: %w", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM nodes WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear nodes: %w", err)
	}
	if data == nil {
		data = &model.GraphData{}
	}

	for i, n := range data.Nodes {
		tags, err := jsonText(n.Tags)
		if err != nil {
			return fmt.Errorf("node %s tags: %w", n.ID, err)
		}
		meta, err := jsonText(n.Metadata)
		if err != nil {
			return fmt.Errorf("node %s metadata: %w", n.ID, err)
		}
		var deadline sql.NullString
		if n.Deadline != nil {
			deadline = sql.NullString{String: formatTime(*n.Deadline), Valid: true}
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO nodes (
				project_id, id, position, type, title, description, status,
				source_document, source_location, source_text, checkbox_state,
				condition_met, deadline, confidence, tags, metadata, notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, n.ID, i, string(n.Type), n.Title, n.Description, string(n.Status),
			n.SourceDocument, n.SourceLocation, n.SourceText, nullBool(n.CheckboxState),
			nullBool(n.ConditionMet), deadline, n.Confidence, tags, meta, n.Notes,
			formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert node %s: %w", n.ID, err)
		}
	}

	for i, e := range data.Edges {
		meta, err := jsonText(e.Metadata)
		if err != nil {
			return fmt.Errorf("edge %s metadata: %w", e.ID, err)
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO edges (
				project_id, id, position, source_id, target_id, type,
				description, confidence, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, e.ID, i, e.SourceID, e.TargetID, string(e.Type),
			e.Description, e.Confidence, meta,
		)
		if err != nil {
			return fmt.Errorf("insert edge %s: %w", e.ID, err)
		}
	}

	_, err := db.ExecContext(ctx, `UPDATE projects SET updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), projectID)
	return err
}

func queryDocumentHashes(ctx context.Context, db executor, projectID string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT path, hash FROM document_hashes WHERE project_id = ?`, projectID)
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
	return hashes, rows.Err()
}

func querySetDocumentHash(ctx context.Context, db executor, projectID, path, hash string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO document_hashes (project_id, path, hash, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (project_id, path) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
		projectID, path, hash, formatTime(time.Now().UTC()),
	)
	return err
}

func queryDeleteDocumentHash(ctx context.Context, db executor, projectID, path string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM document_hashes WHERE project_id = ? AND path = ?`, projectID, path)
	return err
}

func scanProject(row scannable) (*model.Project, error) {
	var (
		p                model.Project
		created, updated string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Directory, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanNode(row scannable) (*model.Node, error) {
	var (
		n                model.Node
		checkbox         sql.NullInt64
		conditionMet     sql.NullInt64
		deadline         sql.NullString
		tags, metadata   sql.NullString
		created, updated string
	)
	err := row.Scan(
		&n.ID, &n.Type, &n.Title, &n.Description, &n.Status, &n.SourceDocument,
		&n.SourceLocation, &n.SourceText, &checkbox, &conditionMet, &deadline,
		&n.Confidence, &tags, &metadata, &n.Notes, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	if checkbox.Valid {
		n.CheckboxState = model.Bool(checkbox.Int64 != 0)
	}
	if conditionMet.Valid {
		n.ConditionMet = model.Bool(conditionMet.Int64 != 0)
	}
	if deadline.Valid {
		t, err := parseTime(deadline.String)
		if err != nil {
			return nil, fmt.Errorf("node %s deadline: %w", n.ID, err)
		}
		n.Deadline = &t
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &n.Tags); err != nil {
			return nil, fmt.Errorf("node %s tags: %w", n.ID, err)
		}
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
			return nil, fmt.Errorf("node %s metadata: %w", n.ID, err)
		}
	}
	if n.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &n, nil
}

func scanEdge(row scannable) (*model.Edge, error) {
	var (
		e        model.Edge
		metadata sql.NullString
	)
	if err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Description, &e.Confidence, &metadata); err != nil {
		return nil, err
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("edge %s metadata: %w", e.ID, err)
		}
	}
	return &e, nil
}

// formatTime stores timestamps as RFC 3339 text with nanoseconds so that
// they round-trip exactly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	if *b {
		return sql.NullInt64{Int64: 1, Valid: true}
	}
	return sql.NullInt64{Valid: true}
}

// jsonText encodes tags or metadata for a TEXT column; empty values are
// stored as NULL.
func jsonText(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case []string:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
