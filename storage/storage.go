// Package storage defines a Provider interface for the table that holds session
// records. A provider performs point reads, full-overwrite writes and deletes
// by key, and can scan for records whose expiry time has passed.
package storage

import (
	"context"
)

const (
	// MaxIDLength is the maximum allowed length of a Record.ID field.
	MaxIDLength = 255

	// RecordType is the value of the type attribute written with every session record.
	RecordType = "connect-session"
)

// Record contains information that is persisted to the Provider.
type Record struct {
	ID      string                 // unique identifier, maximum length 255 bytes
	Expires int64                  // expiry time in unix milliseconds, zero if not set
	Type    string                 // constant tag identifying session records
	Session map[string]interface{} // opaque session payload
}

// Expired reports whether the record has an expiry time and the time
// now (unix milliseconds) is at or past it.
func (rec *Record) Expired(now int64) bool {
	return rec.Expires != 0 && now >= rec.Expires
}

// Provider is the interface used by the session store for persisting session
// records to a table.
type Provider interface {
	// Fetch returns a record from the table given its unique ID. If there is
	// no matching record, Fetch returns (nil, nil).
	Fetch(ctx context.Context, id string) (*Record, error)

	// Save writes a record to the table. If there is a matching record it
	// is completely replaced.
	Save(ctx context.Context, rec *Record) error

	// Delete the record given its unique ID. It is not an error if the
	// record does not exist.
	Delete(ctx context.Context, id string) error

	// ScanExpired returns the IDs of all records with an expiry time
	// strictly before the time (unix milliseconds). Records without an
	// expiry time are never returned.
	ScanExpired(ctx context.Context, before int64) ([]string, error)

	// TableExists reports whether the underlying table exists.
	TableExists(ctx context.Context) (bool, error)

	// CreateTable creates the underlying table with a single string partition
	// key named "id". The capacity units are only used by providers that
	// provision throughput.
	CreateTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) error
}
