// Package redis has a storage provider that uses a Redis server.
//
// Redis has no tables, so the table name is used as a key namespace:
//
//  <table>:<id>       JSON encoded record
//  <table>:expires    sorted set of ids scored by expiry time (unix milliseconds)
//
// Records without an expiry time are not added to the sorted set.
package redis

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jjeffery/dynamosessions/storage"
	"github.com/jjeffery/errors"
	backend "github.com/redis/go-redis/v9"
)

// Provider provides storage for sessions using Redis.
// It implements the storage.Provider interface.
type Provider struct {
	client    backend.UniversalClient
	tableName string
}

var (
	// ensure Provider implements storage.Provider
	_ storage.Provider = (*Provider)(nil)
)

// redisRecord is the JSON representation of a record
type redisRecord struct {
	ID      string                 `json:"id"`
	Expires int64                  `json:"expires,omitempty"`
	Type    string                 `json:"type,omitempty"`
	Session map[string]interface{} `json:"session"`
}

// New creates a new Provider given a Redis client and the table name.
func New(client backend.UniversalClient, tableName string) *Provider {
	if tableName == "" {
		tableName = "sessions"
	}
	return &Provider{
		client:    client,
		tableName: tableName,
	}
}

func (db *Provider) key(id string) string {
	return db.tableName + ":" + id
}

func (db *Provider) indexKey() string {
	return db.tableName + ":expires"
}

// Fetch implements the storage.Provider interface.
func (db *Provider) Fetch(ctx context.Context, id string) (*storage.Record, error) {
	errors := errors.With("id", id, "table", db.tableName)
	data, err := db.client.Get(ctx, db.key(id)).Bytes()
	if err == backend.Nil {
		// not found
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot get record")
	}
	var rr redisRecord
	if err := json.Unmarshal(data, &rr); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal record")
	}
	return &storage.Record{
		ID:      id,
		Expires: rr.Expires,
		Type:    rr.Type,
		Session: rr.Session,
	}, nil
}

// Save implements the storage.Provider interface.
func (db *Provider) Save(ctx context.Context, rec *storage.Record) error {
	errors := errors.With("id", rec.ID, "table", db.tableName)
	data, err := json.Marshal(redisRecord{
		ID:      rec.ID,
		Expires: rec.Expires,
		Type:    rec.Type,
		Session: rec.Session,
	})
	if err != nil {
		return errors.Wrap(err, "cannot marshal record")
	}

	pipe := db.client.TxPipeline()
	pipe.Set(ctx, db.key(rec.ID), data, 0)
	if rec.Expires != 0 {
		pipe.ZAdd(ctx, db.indexKey(), backend.Z{
			Score:  float64(rec.Expires),
			Member: rec.ID,
		})
	} else {
		pipe.ZRem(ctx, db.indexKey(), rec.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "cannot save record")
	}
	return nil
}

// Delete implements the storage.Provider interface.
func (db *Provider) Delete(ctx context.Context, id string) error {
	pipe := db.client.TxPipeline()
	pipe.Del(ctx, db.key(id))
	pipe.ZRem(ctx, db.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.With("id", id, "table", db.tableName).Wrap(err, "cannot delete record")
	}
	return nil
}

// ScanExpired implements the storage.Provider interface.
func (db *Provider) ScanExpired(ctx context.Context, before int64) ([]string, error) {
	ids, err := db.client.ZRangeByScore(ctx, db.indexKey(), &backend.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before, 10),
	}).Result()
	if err != nil {
		return nil, errors.With("table", db.tableName).Wrap(err, "cannot scan expiry index")
	}
	return ids, nil
}

// TableExists implements the storage.Provider interface. A Redis
// namespace always exists.
func (db *Provider) TableExists(ctx context.Context) (bool, error) {
	return true, nil
}

// CreateTable implements the storage.Provider interface. It does nothing.
func (db *Provider) CreateTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) error {
	return nil
}
