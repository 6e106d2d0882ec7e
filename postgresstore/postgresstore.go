// Package postgresstore provides a session store backed by a PostgreSQL
// table. The structure of the table is described in the storage/postgres
// package, and the table is created if it does not exist.
package postgresstore

import (
	"context"
	"database/sql"

	"github.com/gorilla/sessions"
	"github.com/jjeffery/dynamosessions/gorillastore"
	"github.com/jjeffery/dynamosessions/sessionstore"
	"github.com/jjeffery/dynamosessions/storage/postgres"
)

// New creates a new session store backed by the PostgreSQL table. If
// tableName is blank then "sessions" is used.
func New(ctx context.Context, db *sql.DB, tableName string, opts sessionstore.Options) *sessionstore.Store {
	return sessionstore.New(ctx, postgres.New(db, tableName), opts)
}

// NewSessionStore returns a Gorilla session store backed by the PostgreSQL
// table, along with the underlying session store.
func NewSessionStore(ctx context.Context, db *sql.DB, tableName string, opts sessionstore.Options, cookieOptions sessions.Options, secrets ...[]byte) (sessions.Store, *sessionstore.Store, error) {
	store := New(ctx, db, tableName, opts)
	gs, err := gorillastore.New(store, cookieOptions, secrets...)
	if err != nil {
		store.ClearInterval()
		return nil, nil, err
	}
	return gs, store, nil
}
