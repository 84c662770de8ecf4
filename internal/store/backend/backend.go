// Package backend opens a store.Store from a database URL.
package backend

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/tendergraph/internal/store"
	"github.com/alfredjeanlab/tendergraph/internal/store/memstore"
	"github.com/alfredjeanlab/tendergraph/internal/store/postgres"
	"github.com/alfredjeanlab/tendergraph/internal/store/sqlite"
)

// Open dispatches on the URL scheme: postgres:// and postgresql:// open a
// PostgreSQL store, sqlite:// (or a bare file path) opens a SQLite file and
// memory:// keeps everything in process memory.
func Open(databaseURL string) (store.Store, error) {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		if databaseURL == "" {
			return nil, fmt.Errorf("database URL is empty")
		}
		return sqlite.New(databaseURL)
	}

	switch scheme {
	case "postgres", "postgresql":
		return postgres.New(databaseURL)
	case "memory":
		return memstore.New(), nil
	case "sqlite", "sqlite3", "file":
		if rest == "" {
			return nil, fmt.Errorf("sqlite URL %q has no path", databaseURL)
		}
		return sqlite.New(rest)
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}
}
