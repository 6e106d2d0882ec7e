package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jjeffery/dynamosessions/storage"
	"github.com/jjeffery/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultPrefix is prepended to session ids if Options.Prefix is blank
	// and Options.NoPrefix is false.
	DefaultPrefix = "sess:"

	// DefaultReapInterval is the period of the reap sweep if Options.ReapInterval is zero.
	DefaultReapInterval = 10 * time.Minute

	// DefaultCapacityUnits is the read and write capacity used when the table is created.
	DefaultCapacityUnits = 5

	// DefaultMaxAge is the session lifetime used when the session payload
	// does not have a numeric cookie.maxAge.
	DefaultMaxAge = 24 * time.Hour
)

var errEmptySessionID = errors.New("empty session id")

// Options control the behavior of a Store. The zero value for each field
// selects its default.
type Options struct {
	// Prefix is prepended to every session id to form the storage key.
	Prefix string

	// NoPrefix stores session ids unchanged. Prefix is ignored.
	NoPrefix bool

	// ReapInterval is the period of the background sweep that deletes
	// expired sessions. A negative value disables the sweep.
	ReapInterval time.Duration

	// ReadCapacityUnits and WriteCapacityUnits are used only if the table
	// does not exist and has to be created.
	ReadCapacityUnits  int64
	WriteCapacityUnits int64

	// Logger receives provisioning and sweep messages. Defaults to the
	// logrus standard logger.
	Logger logrus.FieldLogger

	// TimeNow returns the current time. Defaults to time.Now.
	TimeNow func() time.Time

	// Registerer, if not nil, is used to register the store's metrics.
	Registerer prometheus.Registerer
}

func (opts Options) withDefaults() Options {
	if opts.NoPrefix {
		opts.Prefix = ""
	} else if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ReapInterval == 0 {
		opts.ReapInterval = DefaultReapInterval
	}
	if opts.ReadCapacityUnits <= 0 {
		opts.ReadCapacityUnits = DefaultCapacityUnits
	}
	if opts.WriteCapacityUnits <= 0 {
		opts.WriteCapacityUnits = DefaultCapacityUnits
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.TimeNow == nil {
		opts.TimeNow = time.Now
	}
	return opts
}

// Store persists sessions using a storage.Provider. It is safe for concurrent use.
type Store struct {
	db      storage.Provider
	prefix  string
	logger  logrus.FieldLogger
	timeNow func() time.Time
	metrics *metrics

	reap struct {
		once   sync.Once
		cancel context.CancelFunc
		done   chan struct{}
	}
}

// New creates a store that persists sessions using db.
//
// If the table does not exist it is created. Failure to describe or create
// the table is logged and does not prevent the store from being returned:
// if the table is unusable the error surfaces on the first operation.
//
// If the reap interval is positive, a background sweep is started. Call
// ClearInterval to stop it.
func New(ctx context.Context, db storage.Provider, opts Options) *Store {
	opts = opts.withDefaults()
	store := &Store{
		db:      db,
		prefix:  opts.Prefix,
		logger:  opts.Logger,
		timeNow: opts.TimeNow,
		metrics: newMetrics(opts.Registerer),
	}
	store.ensureTable(ctx, opts.ReadCapacityUnits, opts.WriteCapacityUnits)
	if opts.ReapInterval > 0 {
		store.startReap(opts.ReapInterval)
	}
	return store
}

// Prefix returns the prefix prepended to session ids.
func (store *Store) Prefix() string {
	return store.prefix
}

func (store *Store) ensureTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) {
	exists, err := store.db.TableExists(ctx)
	if err == nil && exists {
		return
	}
	if err != nil {
		store.logger.WithError(err).Warn("cannot describe session table, will attempt to create")
	}
	err = store.db.CreateTable(ctx, readCapacityUnits, writeCapacityUnits)
	if err != nil {
		store.logger.WithError(err).Error("cannot create session table")
		return
	}
	store.logger.WithFields(logrus.Fields{
		"readCapacityUnits":  readCapacityUnits,
		"writeCapacityUnits": writeCapacityUnits,
	}).Info("created session table")
}

// key returns the storage key for a session id
func (store *Store) key(sid string) (string, error) {
	if sid == "" {
		return "", errEmptySessionID
	}
	key := store.prefix + sid
	if len(key) > storage.MaxIDLength {
		return "", fmt.Errorf("session key too long len=%d", len(key))
	}
	return key, nil
}

func (store *Store) nowMillis() int64 {
	return store.timeNow().UnixNano() / int64(time.Millisecond)
}

// Get returns the session payload for the session id. If there is no
// session, or the session has expired, Get returns (nil, nil). Expired
// sessions are not deleted by Get.
func (store *Store) Get(ctx context.Context, sid string) (map[string]interface{}, error) {
	key, err := store.key(sid)
	if err != nil {
		return nil, err
	}
	rec, err := store.db.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Expired(store.nowMillis()) {
		store.metrics.expiredReads.Inc()
		return nil, nil
	}
	if rec.Session == nil {
		return make(map[string]interface{}), nil
	}
	return rec.Session, nil
}

// Set saves the session payload for the session id, replacing any existing
// session. The payload must marshal to a JSON object; only its JSON
// representation is stored, so later changes by the caller do not affect
// the saved session.
//
// The session expires cookie.maxAge milliseconds from now, or after
// DefaultMaxAge if the payload has no numeric cookie.maxAge.
func (store *Store) Set(ctx context.Context, sid string, sess interface{}) error {
	key, err := store.key(sid)
	if err != nil {
		return err
	}
	payload, err := normalize(sess)
	if err != nil {
		return errors.With("id", sid).Wrap(err, "cannot save session")
	}
	rec := &storage.Record{
		ID:      key,
		Expires: store.expires(payload),
		Type:    storage.RecordType,
		Session: payload,
	}
	return store.db.Save(ctx, rec)
}

// Touch resets the expiry time of an existing session using the
// cookie.maxAge of sess, without changing the stored payload. It does
// nothing if there is no session or the session has expired.
func (store *Store) Touch(ctx context.Context, sid string, sess interface{}) error {
	key, err := store.key(sid)
	if err != nil {
		return err
	}
	payload, err := normalize(sess)
	if err != nil {
		return errors.With("id", sid).Wrap(err, "cannot touch session")
	}
	rec, err := store.db.Fetch(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil || rec.Expired(store.nowMillis()) {
		return nil
	}
	rec.Expires = store.expires(payload)
	return store.db.Save(ctx, rec)
}

// Destroy deletes the session. It is not an error if the session does not
// exist. Callers that do not care about failure can ignore the error.
func (store *Store) Destroy(ctx context.Context, sid string) error {
	key, err := store.key(sid)
	if err != nil {
		return err
	}
	return store.db.Delete(ctx, key)
}

// Reap deletes all sessions that have expired. If the table scan fails
// the error is returned and nothing is deleted. Otherwise the expired
// sessions are deleted one at a time, and a failure to delete one session
// does not stop the sweep. Cancelling ctx stops the sweep and returns the
// context error.
//
// Records whose key does not start with the store's prefix belong to
// another user of the table and are left alone.
func (store *Store) Reap(ctx context.Context) error {
	ids, err := store.db.ScanExpired(ctx, store.nowMillis())
	if err != nil {
		store.metrics.reapFailures.Inc()
		return err
	}
	var count int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.HasPrefix(id, store.prefix) {
			continue
		}
		if err := store.Destroy(ctx, id[len(store.prefix):]); err != nil {
			store.logger.WithError(err).WithField("id", id).Debug("cannot delete expired session")
			continue
		}
		count++
	}
	store.metrics.reaped.Add(float64(count))
	if count > 0 {
		store.logger.WithField("count", count).Debug("deleted expired sessions")
	}
	return nil
}

func (store *Store) startReap(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	store.reap.cancel = cancel
	store.reap.done = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(store.reap.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				if err := store.Reap(ctx); err != nil && ctx.Err() == nil {
					store.logger.WithError(err).Warn("cannot reap expired sessions")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ClearInterval stops the background reap sweep. A sweep in progress has
// its context cancelled, and ClearInterval waits for it to return. It is
// safe to call more than once, and safe to call when no sweep was started.
func (store *Store) ClearInterval() {
	if store.reap.cancel == nil {
		return
	}
	store.reap.once.Do(store.reap.cancel)
	<-store.reap.done
}

// expires returns the expiry time in unix milliseconds for a session payload.
func (store *Store) expires(payload map[string]interface{}) int64 {
	maxAge := int64(DefaultMaxAge / time.Millisecond)
	if cookie, ok := payload["cookie"].(map[string]interface{}); ok {
		if ms, ok := cookie["maxAge"].(float64); ok {
			maxAge = int64(ms)
		}
	}
	return store.nowMillis() + maxAge
}

// normalize converts a session payload to plain data by marshaling it to
// JSON and back. A nil payload becomes an empty object.
func normalize(sess interface{}) (map[string]interface{}, error) {
	payload := make(map[string]interface{})
	if sess == nil {
		return payload, nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal session")
	}
	var object map[string]interface{}
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, errors.Wrap(err, "session is not a JSON object")
	}
	if object == nil {
		return payload, nil
	}
	return object, nil
}
