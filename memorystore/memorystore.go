// Package memorystore provides a session store backed by memory. It is
// intended for testing and for single-process development servers.
package memorystore

import (
	"context"

	"github.com/gorilla/sessions"
	"github.com/jjeffery/dynamosessions/gorillastore"
	"github.com/jjeffery/dynamosessions/sessionstore"
	"github.com/jjeffery/dynamosessions/storage/memory"
)

// New creates a new session store backed by memory.
func New(ctx context.Context, opts sessionstore.Options) *sessionstore.Store {
	return sessionstore.New(ctx, memory.New(), opts)
}

// NewSessionStore returns a Gorilla session store backed by memory, along
// with the underlying session store.
func NewSessionStore(ctx context.Context, opts sessionstore.Options, cookieOptions sessions.Options, secrets ...[]byte) (sessions.Store, *sessionstore.Store, error) {
	store := New(ctx, opts)
	gs, err := gorillastore.New(store, cookieOptions, secrets...)
	if err != nil {
		store.ClearInterval()
		return nil, nil, err
	}
	return gs, store, nil
}
