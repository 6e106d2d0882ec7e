// Package postgres has a storage provider that uses a PostgreSQL database table.
//
// The database table is expected to have the following structure:
//  create table <table_name>(
//    id character varying(255) primary key,
//    expires bigint null,
//    type character varying null,
//    session jsonb null
//  )
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jjeffery/dynamosessions/storage"
	"github.com/jjeffery/errors"
)

// Provider provides storage for sessions using a PostgreSQL table.
// It implements the storage.Provider interface.
//
// The structure of the SQL table is described in the package comment.
type Provider struct {
	db        *sql.DB
	tableName string
}

var (
	// ensure Provider implements storage.Provider
	_ storage.Provider = (*Provider)(nil)
)

// New creates a new Provider given a database handle and the PostgreSQL table name.
func New(db *sql.DB, tableName string) *Provider {
	if tableName == "" {
		tableName = "sessions"
	}
	return &Provider{
		db:        db,
		tableName: tableName,
	}
}

// TableExists implements the storage.Provider interface.
func (db *Provider) TableExists(ctx context.Context) (bool, error) {
	var name sql.NullString
	err := db.db.QueryRowContext(ctx, "select to_regclass($1)::text", db.tableName).Scan(&name)
	if err != nil {
		return false, errors.With("table", db.tableName).Wrap(err, "cannot describe table")
	}
	return name.Valid, nil
}

// CreateTable implements the storage.Provider interface. PostgreSQL does
// not provision throughput, so the capacity units are ignored.
func (db *Provider) CreateTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) error {
	errors := errors.With("table", db.tableName)
	queryFmt := `create table if not exists %s(` +
		`id character varying(255) primary key,` +
		` expires bigint null,` +
		` type character varying null,` +
		` session jsonb null)`
	query := fmt.Sprintf(queryFmt, db.tableName)
	if _, err := db.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, "cannot create table")
	}

	return nil
}

// DropTable deletes the table.
func (db *Provider) DropTable(ctx context.Context) error {
	errors := errors.With("table", db.tableName)
	query := fmt.Sprintf(`drop table if exists %s`, db.tableName)
	if _, err := db.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, "cannot drop table")
	}
	return nil
}

// Fetch implements the storage.Provider interface.
func (db *Provider) Fetch(ctx context.Context, id string) (*storage.Record, error) {
	errors := errors.With("id", id, "table", db.tableName)

	var expires sql.NullInt64
	var typ sql.NullString
	var sessionJSON []byte

	query := fmt.Sprintf("select expires, type, session from %s where id = $1", db.tableName)
	err := db.db.QueryRowContext(ctx, query, id).Scan(
		&expires,
		&typ,
		&sessionJSON,
	)
	if err == sql.ErrNoRows {
		// not found
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot get record").With("query", query)
	}
	rec := &storage.Record{
		ID: id,
	}
	if expires.Valid {
		rec.Expires = expires.Int64
	}
	if typ.Valid {
		rec.Type = typ.String
	}
	if len(sessionJSON) > 0 {
		if err := json.Unmarshal(sessionJSON, &rec.Session); err != nil {
			return nil, errors.Wrap(err, "cannot unmarshal session")
		}
	}

	return rec, nil
}

// Save implements the storage.Provider interface.
func (db *Provider) Save(ctx context.Context, rec *storage.Record) error {
	errors := errors.With("id", rec.ID, "table", db.tableName)

	var expires sql.NullInt64
	if rec.Expires != 0 {
		expires.Valid = true
		expires.Int64 = rec.Expires
	}
	var typ sql.NullString
	if rec.Type != "" {
		typ.Valid = true
		typ.String = rec.Type
	}
	var sessionJSON []byte
	if rec.Session != nil {
		var err error
		if sessionJSON, err = json.Marshal(rec.Session); err != nil {
			return errors.Wrap(err, "cannot marshal session")
		}
	}

	queryFmt := `insert into %s(id, expires, type, session) values($1, $2, $3, $4)` +
		` on conflict(id) do update set expires = $2, type = $3, session = $4`
	query := fmt.Sprintf(queryFmt, db.tableName)
	if _, err := db.db.ExecContext(ctx, query, rec.ID, expires, typ, sessionJSON); err != nil {
		return errors.Wrap(err, "cannot save row")
	}

	return nil
}

// Delete implements the storage.Provider interface.
func (db *Provider) Delete(ctx context.Context, id string) error {
	errors := errors.With("id", id, "table", db.tableName)
	query := fmt.Sprintf("delete from %s where id = $1", db.tableName)
	if _, err := db.db.ExecContext(ctx, query, id); err != nil {
		return errors.Wrap(err, "cannot delete row")
	}
	return nil
}

// ScanExpired implements the storage.Provider interface.
func (db *Provider) ScanExpired(ctx context.Context, before int64) ([]string, error) {
	errors := errors.With("table", db.tableName)
	query := fmt.Sprintf("select id from %s where expires < $1", db.tableName)
	rows, err := db.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, errors.Wrap(err, "cannot scan table")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "cannot scan row")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot scan table")
	}
	return ids, nil
}
