package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenSQLite(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name string
		url  string
	}{
		{"scheme", "sqlite://" + filepath.Join(dir, "a.db")},
		{"bare path", filepath.Join(dir, "b.db")},
		{"memory", "memory://"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Open(tc.url)
			if err != nil {
				t.Fatalf("Open(%q): %v", tc.url, err)
			}
			defer s.Close()
			if _, err := s.ListProjects(context.Background()); err != nil {
				t.Errorf("ListProjects: %v", err)
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	for _, tc := range []struct {
		url  string
		want string
	}{
		{"", "empty"},
		{"mysql://localhost/db", "unsupported database scheme"},
		{"sqlite://", "no path"},
	} {
		_, err := Open(tc.url)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("Open(%q) err = %v, want containing %q", tc.url, err, tc.want)
		}
	}
}
