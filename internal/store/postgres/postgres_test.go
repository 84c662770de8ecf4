package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/tendergraph/internal/model"
	"github.com/alfredjeanlab/tendergraph/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var projectColumns = []string{"id", "name", "directory", "created_at", "updated_at"}

var nodeRowColumns = []string{
	"id", "type", "title", "description", "status", "source_document",
	"source_location", "source_text", "checkbox_state", "condition_met", "deadline",
	"confidence", "tags", "metadata", "notes", "created_at", "updated_at",
}

var edgeRowColumns = []string{"id", "source_id", "target_id", "type", "description", "confidence", "metadata"}

func expectProjectExists(mock sqlmock.Sqlmock, id string, exists bool) {
	q := mock.ExpectQuery("SELECT 1 FROM projects WHERE id = \\$1").WithArgs(id)
	if exists {
		q.WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	} else {
		q.WillReturnError(sql.ErrNoRows)
	}
}

func TestScanHelpers(t *testing.T) {
	// nullTimePtr
	if nullTimePtr(nil).Valid {
		t.Error("nullTimePtr(nil) should be invalid")
	}
	now := time.Now()
	if nt := nullTimePtr(&now); !nt.Valid || !nt.Time.Equal(now) {
		t.Errorf("nullTimePtr(now) = %v", nt)
	}

	// nullBoolPtr
	if nullBoolPtr(nil).Valid {
		t.Error("nullBoolPtr(nil) should be invalid")
	}
	if nb := nullBoolPtr(model.Bool(false)); !nb.Valid || nb.Bool {
		t.Errorf("nullBoolPtr(false) = %v", nb)
	}

	// jsonbValue
	for _, tc := range []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"empty tags", []string{}, ""},
		{"empty metadata", map[string]any{}, ""},
		{"tags", []string{"a", "b"}, `["a","b"]`},
		{"metadata", map[string]any{"is_required": true}, `{"is_required":true}`},
	} {
		got, err := jsonbValue(tc.in)
		if err != nil {
			t.Fatalf("jsonbValue(%s): %v", tc.name, err)
		}
		if string(got) != tc.want {
			t.Errorf("jsonbValue(%s) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestQueryListProjects(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, name, directory, created_at, updated_at\\s+FROM projects ORDER BY id").
		WillReturnRows(sqlmock.NewRows(projectColumns).
			AddRow("bridge", "Bridge", "/tenders/bridge", now, now).
			AddRow("school", "School", "", now, now))

	projects, err := queryListProjects(context.Background(), db)
	if err != nil {
		t.Fatalf("queryListProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("got %d projects, want 2", len(projects))
	}
	if projects[0].ID != "bridge" || projects[0].Directory != "/tenders/bridge" {
		t.Errorf("projects[0] = %+v", projects[0])
	}
}

func TestQueryCreateProject(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	p := &model.Project{ID: "bridge", Name: "Bridge", Directory: "/t", CreatedAt: now, UpdatedAt: now}
	mock.ExpectExec("INSERT INTO projects").
		WithArgs("bridge", "Bridge", "/t", now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryCreateProject(context.Background(), db, p); err != nil {
		t.Fatalf("queryCreateProject: %v", err)
	}
}

func TestQueryGetProject(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		now := time.Now().UTC()
		mock.ExpectQuery("FROM projects WHERE id = \\$1").WithArgs("bridge").
			WillReturnRows(sqlmock.NewRows(projectColumns).AddRow("bridge", "Bridge", "", now, now))

		p, err := queryGetProject(context.Background(), db, "bridge")
		if err != nil {
			t.Fatalf("queryGetProject: %v", err)
		}
		if p.Name != "Bridge" {
			t.Errorf("Name = %q, want Bridge", p.Name)
		}
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery("FROM projects WHERE id = \\$1").WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(projectColumns))

		_, err := queryGetProject(context.Background(), db, "nope")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("err = %v, want store.ErrNotFound", err)
		}
	})
}

func TestQueryDeleteProject(t *testing.T) {
	for _, tc := range []struct {
		name     string
		affected int64
		notFound bool
	}{
		{"deleted", 1, false},
		{"missing", 0, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec("DELETE FROM projects WHERE id = \\$1").WithArgs("bridge").
				WillReturnResult(sqlmock.NewResult(0, tc.affected))

			err := queryDeleteProject(context.Background(), db, "bridge")
			if got := errors.Is(err, store.ErrNotFound); got != tc.notFound {
				t.Errorf("queryDeleteProject err = %v, want not-found %v", err, tc.notFound)
			}
		})
	}
}

func TestQueryLoadGraph(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	deadline := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	expectProjectExists(mock, "bridge", true)
	mock.ExpectQuery("FROM nodes WHERE project_id = \\$1 ORDER BY position").WithArgs("bridge").
		WillReturnRows(sqlmock.NewRows(nodeRowColumns).
			AddRow("doc1", "document", "Vergabeunterlagen", "", "not_started", "/t/a.pdf",
				"", "", nil, nil, nil,
				1.0, nil, nil, "", now, now).
			AddRow("sig1", "signature", "Angebot unterschreiben", "Seite 3", "completed", "/t/a.pdf",
				"S. 3", "Unterschrift", true, nil, deadline,
				0.9, []byte(`["critical","signature"]`), []byte(`{"is_required":true}`), "done", now, now))
	mock.ExpectQuery("FROM edges WHERE project_id = \\$1 ORDER BY position").WithArgs("bridge").
		WillReturnRows(sqlmock.NewRows(edgeRowColumns).
			AddRow("e1", "sig1", "doc1", "part_of", "", 1.0, nil))

	data, err := queryLoadGraph(context.Background(), db, "bridge")
	if err != nil {
		t.Fatalf("queryLoadGraph: %v", err)
	}
	if len(data.Nodes) != 2 || len(data.Edges) != 1 {
		t.Fatalf("got %d nodes, %d edges; want 2, 1", len(data.Nodes), len(data.Edges))
	}

	doc := data.Nodes[0]
	if doc.CheckboxState != nil || doc.Deadline != nil || doc.Tags != nil || doc.Metadata != nil {
		t.Errorf("doc optional fields should be unset: %+v", doc)
	}

	sig := data.Nodes[1]
	if sig.Type != model.NodeSignature || sig.Status != model.StatusCompleted {
		t.Errorf("sig type/status = %s/%s", sig.Type, sig.Status)
	}
	if sig.CheckboxState == nil || !*sig.CheckboxState {
		t.Error("sig.CheckboxState should be true")
	}
	if sig.Deadline == nil || !sig.Deadline.Equal(deadline) {
		t.Errorf("sig.Deadline = %v, want %v", sig.Deadline, deadline)
	}
	if len(sig.Tags) != 2 || sig.Tags[0] != "critical" {
		t.Errorf("sig.Tags = %v", sig.Tags)
	}
	if !sig.IsRequired() {
		t.Error("sig should be required")
	}
	if sig.Notes != "done" {
		t.Errorf("sig.Notes = %q", sig.Notes)
	}

	if e := data.Edges[0]; e.Type != model.EdgePartOf || e.SourceID != "sig1" {
		t.Errorf("edge = %+v", e)
	}
}

func TestQueryLoadGraph_UnknownProject(t *testing.T) {
	db, mock := newMockDB(t)
	expectProjectExists(mock, "nope", false)

	_, err := queryLoadGraph(context.Background(), db, "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want store.ErrNotFound", err)
	}
}

func sampleGraph() *model.GraphData {
	now := time.Now().UTC()
	return &model.GraphData{
		Nodes: []*model.Node{
			{ID: "doc1", Type: model.NodeDocument, Title: "Doc", Status: model.StatusNotStarted, Confidence: 1, CreatedAt: now, UpdatedAt: now},
			{ID: "req1", Type: model.NodeRequirement, Title: "Req", Status: model.StatusNotStarted, Confidence: 0.8,
				Tags: []string{"critical"}, CreatedAt: now, UpdatedAt: now},
		},
		Edges: []*model.Edge{
			{ID: "e1", SourceID: "req1", TargetID: "doc1", Type: model.EdgePartOf, Confidence: 1},
		},
	}
}

func TestSaveGraph(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	expectProjectExists(mock, "bridge", true)
	mock.ExpectExec("DELETE FROM edges WHERE project_id = \\$1").WithArgs("bridge").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM nodes WHERE project_id = \\$1").WithArgs("bridge").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("bridge", "doc1", 0, "document", "Doc", "", "not_started",
			"", "", "", nil, nil, nil, 1.0, sqlmock.AnyArg(), sqlmock.AnyArg(), "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO nodes").
		WithArgs("bridge", "req1", 1, "requirement", "Req", "", "not_started",
			"", "", "", nil, nil, nil, 0.8, []byte(`["critical"]`), sqlmock.AnyArg(), "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO edges").
		WithArgs("bridge", "e1", 0, "req1", "doc1", "part_of", "", 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE projects SET updated_at").
		WithArgs("bridge", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.SaveGraph(context.Background(), "bridge", sampleGraph()); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}
}

func TestSaveGraph_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	expectProjectExists(mock, "bridge", true)
	mock.ExpectExec("DELETE FROM edges").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM nodes").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO nodes").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveGraph(context.Background(), "bridge", sampleGraph())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveGraph_UnknownProject(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)

	mock.ExpectBegin()
	expectProjectExists(mock, "nope", false)
	mock.ExpectRollback()

	err := s.SaveGraph(context.Background(), "nope", sampleGraph())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want store.ErrNotFound", err)
	}
}

func TestDocumentHashes(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT path, hash FROM document_hashes WHERE project_id = \\$1").WithArgs("bridge").
		WillReturnRows(sqlmock.NewRows([]string{"path", "hash"}).
			AddRow("/t/a.pdf", "aaa").
			AddRow("/t/b.docx", "bbb"))
	mock.ExpectExec("INSERT INTO document_hashes .+ ON CONFLICT").
		WithArgs("bridge", "/t/c.txt", "ccc", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM document_hashes WHERE project_id = \\$1 AND path = \\$2").
		WithArgs("bridge", "/t/a.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	hashes, err := s.DocumentHashes(ctx, "bridge")
	if err != nil {
		t.Fatalf("DocumentHashes: %v", err)
	}
	if len(hashes) != 2 || hashes["/t/b.docx"] != "bbb" {
		t.Errorf("hashes = %v", hashes)
	}
	if err := s.SetDocumentHash(ctx, "bridge", "/t/c.txt", "ccc"); err != nil {
		t.Fatalf("SetDocumentHash: %v", err)
	}
	if err := s.DeleteDocumentHash(ctx, "bridge", "/t/a.pdf"); err != nil {
		t.Fatalf("DeleteDocumentHash: %v", err)
	}
}

func TestRunInTransaction_NestedReusesTx(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewWithDB(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.RunInTransaction(context.Background(), func(inner store.Store) error {
			return inner.CreateProject(context.Background(), &model.Project{ID: "p", Name: "p", CreatedAt: now, UpdatedAt: now})
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
}

func TestMigrationsAllowDanglingEdges(t *testing.T) {
	up, err := fs.ReadFile(migrationsFS, "migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if strings.Contains(string(up), "REFERENCES nodes") {
		t.Error("edges must not reference nodes; dangling edges are stored as-is")
	}
	if !strings.Contains(string(up), "REFERENCES projects(id) ON DELETE CASCADE") {
		t.Error("tables should cascade on project deletion")
	}
}
