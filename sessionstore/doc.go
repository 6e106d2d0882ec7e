// Package sessionstore persists web session records in a key-value table.
//
// A Store maps the operations of a session middleware (get, set, destroy and
// touch) onto a storage.Provider. Each session is kept as one record whose key
// is a configurable prefix followed by the session id. A record carries an
// absolute expiry time: Get treats an expired record as absent but leaves it
// in the table, and the periodic reap sweep deletes expired records one at a
// time.
package sessionstore
