// Package memory has a memory-backed storage provider for testing purposes.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/jjeffery/dynamosessions/storage"
	"github.com/jjeffery/errors"
)

// Provider implements the storage.Provider using memory. It is intended for testing.
//
// Expired records are kept until they are deleted, which allows tests to
// observe records that the session store treats as absent.
type Provider struct {
	mutex  sync.RWMutex
	m      map[string]*storage.Record
	exists bool
}

// New creates a new memory-backed Provider. The table is reported as
// already existing.
func New() *Provider {
	return &Provider{exists: true}
}

// WithoutTable marks the table as not existing until CreateTable is called.
// It returns db.
func (db *Provider) WithoutTable() *Provider {
	db.mutex.Lock()
	db.exists = false
	db.mutex.Unlock()
	return db
}

// Fetch implements the Provider interface.
func (db *Provider) Fetch(ctx context.Context, id string) (*storage.Record, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return cloneRecord(db.m[id])
}

// Save implements the Provider interface.
func (db *Provider) Save(ctx context.Context, rec *storage.Record) error {
	cpy, err := cloneRecord(rec)
	if err != nil {
		return err
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.m == nil {
		db.m = make(map[string]*storage.Record)
	}
	db.m[rec.ID] = cpy
	return nil
}

// Delete implements the Provider interface.
func (db *Provider) Delete(ctx context.Context, id string) error {
	db.mutex.Lock()
	delete(db.m, id)
	db.mutex.Unlock()
	return nil
}

// ScanExpired implements the Provider interface. IDs are returned in
// lexical order.
func (db *Provider) ScanExpired(ctx context.Context, before int64) ([]string, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	var ids []string
	for id, rec := range db.m {
		if rec.Expires != 0 && rec.Expires < before {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// TableExists implements the Provider interface.
func (db *Provider) TableExists(ctx context.Context) (bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.exists, nil
}

// CreateTable implements the Provider interface.
func (db *Provider) CreateTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) error {
	db.mutex.Lock()
	db.exists = true
	db.mutex.Unlock()
	return nil
}

// Len returns the number of records held, including expired records.
func (db *Provider) Len() int {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return len(db.m)
}

// cloneRecord copies a record, including a deep copy of the session payload.
func cloneRecord(rec *storage.Record) (*storage.Record, error) {
	if rec == nil {
		return nil, nil
	}
	cpy := *rec
	if rec.Session != nil {
		data, err := json.Marshal(rec.Session)
		if err != nil {
			return nil, errors.With("id", rec.ID).Wrap(err, "cannot copy session")
		}
		cpy.Session = nil
		if err := json.Unmarshal(data, &cpy.Session); err != nil {
			return nil, errors.With("id", rec.ID).Wrap(err, "cannot copy session")
		}
	}
	return &cpy, nil
}
