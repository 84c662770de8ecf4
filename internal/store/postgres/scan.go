package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanProject(row scannable) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Directory, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// scanNode scans a single row into a model.Node.
// The row must contain columns in the order defined by nodeColumns.
func scanNode(row scannable) (*model.Node, error) {
	var n model.Node
	var (
		checkbox     sql.NullBool
		conditionMet sql.NullBool
		deadline     sql.NullTime
		tags         []byte
		metadata     []byte
	)

	err := row.Scan(
		&n.ID,
		&n.Type,
		&n.Title,
		&n.Description,
		&n.Status,
		&n.SourceDocument,
		&n.SourceLocation,
		&n.SourceText,
		&checkbox,
		&conditionMet,
		&deadline,
		&n.Confidence,
		&tags,
		&metadata,
		&n.Notes,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if checkbox.Valid {
		n.CheckboxState = model.Bool(checkbox.Bool)
	}
	if conditionMet.Valid {
		n.ConditionMet = model.Bool(conditionMet.Bool)
	}
	if deadline.Valid {
		t := deadline.Time
		n.Deadline = &t
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &n.Tags); err != nil {
			return nil, fmt.Errorf("node %s tags: %w", n.ID, err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, fmt.Errorf("node %s metadata: %w", n.ID, err)
		}
	}

	return &n, nil
}

// scanEdge scans a single row into a model.Edge.
// The row must contain columns in the order defined by edgeColumns.
func scanEdge(row scannable) (*model.Edge, error) {
	var e model.Edge
	var metadata []byte
	if err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Description, &e.Confidence, &metadata); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("edge %s metadata: %w", e.ID, err)
		}
	}
	return &e, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullBoolPtr converts a tri-state *bool to a sql.NullBool.
func nullBoolPtr(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// jsonbValue encodes tags or metadata for a JSONB column; empty values are
// stored as NULL.
func jsonbValue(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
