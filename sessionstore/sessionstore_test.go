package sessionstore

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jjeffery/dynamosessions/storage"
	"github.com/jjeffery/dynamosessions/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// clock is a manually advanced time source
type clock struct {
	mutex sync.Mutex
	now   time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mutex.Lock()
	c.now = c.now.Add(d)
	c.mutex.Unlock()
}

func (c *clock) Millis() int64 {
	return c.Now().UnixNano() / int64(time.Millisecond)
}

func newTestStore(t *testing.T, db storage.Provider, c *clock) *Store {
	t.Helper()
	logger, _ := test.NewNullLogger()
	store := New(context.Background(), db, Options{
		ReapInterval: -1,
		Logger:       logger,
		TimeNow:      c.Now,
	})
	t.Cleanup(store.ClearInterval)
	return store
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	db := memory.New()
	store := newTestStore(t, db, c)

	sess := map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 1000},
		"user":   "u1",
	}
	wantNoError(t, store.Set(ctx, "abc", sess))

	c.Advance(500 * time.Millisecond)
	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	want := map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": float64(1000)},
		"user":   "u1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	c.Advance(time.Second)
	got, err = store.Get(ctx, "abc")
	wantNoError(t, err)
	if got != nil {
		t.Fatalf("got=%v, want=nil", got)
	}

	// the expired record is still in the table
	rec, err := db.Fetch(ctx, "sess:abc")
	wantNoError(t, err)
	if rec == nil {
		t.Fatalf("got=nil, want=non-nil")
	}

	wantNoError(t, store.Reap(ctx))
	rec, err = db.Fetch(ctx, "sess:abc")
	wantNoError(t, err)
	if rec != nil {
		t.Fatalf("got=%v, want=nil", rec)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t, memory.New(), newClock())
	got, err := store.Get(context.Background(), "never-written")
	wantNoError(t, err)
	if got != nil {
		t.Fatalf("got=%v, want=nil", got)
	}
}

func TestGetWithoutExpires(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	store := newTestStore(t, db, newClock())
	wantNoError(t, db.Save(ctx, &storage.Record{
		ID:      "sess:abc",
		Session: map[string]interface{}{"user": "u1"},
	}))
	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	if got, want := got["user"], "u1"; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestRecordAttributes(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	db := memory.New()
	store := newTestStore(t, db, c)

	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 60000},
	}))
	rec, err := db.Fetch(ctx, "sess:abc")
	wantNoError(t, err)
	if got, want := rec.ID, "sess:abc"; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := rec.Type, storage.RecordType; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := rec.Expires, c.Millis()+60000; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestDefaultMaxAge(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	db := memory.New()
	store := newTestStore(t, db, c)

	tests := []interface{}{
		nil,
		map[string]interface{}{"user": "u1"},
		map[string]interface{}{"cookie": map[string]interface{}{"maxAge": nil}},
		map[string]interface{}{"cookie": map[string]interface{}{"maxAge": "1000"}},
		map[string]interface{}{"cookie": "not an object"},
	}
	for tn, sess := range tests {
		wantNoError(t, store.Set(ctx, "abc", sess))
		rec, err := db.Fetch(ctx, "sess:abc")
		wantNoError(t, err)
		if got, want := rec.Expires, c.Millis()+int64(DefaultMaxAge/time.Millisecond); got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
	}
}

type userSession struct {
	Cookie struct {
		MaxAge int64 `json:"maxAge"`
	} `json:"cookie"`
	User   string `json:"user"`
	secret string
}

func (s *userSession) Regenerate() error {
	return nil
}

func TestSetCopiesPlainData(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	store := newTestStore(t, memory.New(), c)

	sess := &userSession{User: "u1", secret: "hidden"}
	sess.Cookie.MaxAge = 5000
	wantNoError(t, store.Set(ctx, "abc", sess))
	sess.User = "changed"

	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	want := map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": float64(5000)},
		"user":   "u1",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	m := map[string]interface{}{"list": []interface{}{"a"}}
	wantNoError(t, store.Set(ctx, "def", m))
	m["list"] = append(m["list"].([]interface{}), "b")
	got, err = store.Get(ctx, "def")
	wantNoError(t, err)
	if got, want := len(got["list"].([]interface{})), 1; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestSetRejectsNonObject(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	store := newTestStore(t, db, newClock())

	for _, sess := range []interface{}{[]int{1, 2}, "text", 42, func() {}} {
		if err := store.Set(ctx, "abc", sess); err == nil {
			t.Errorf("%T: got=nil, want=error", sess)
		}
	}
	if got, want := db.Len(), 0; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestSetReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.New(), newClock())

	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{"first": 1, "shared": "a"}))
	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{"second": 2, "shared": "b"}))

	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	want := map[string]interface{}{"second": float64(2), "shared": "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.New(), newClock())

	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{"user": "u1"}))
	wantNoError(t, store.Destroy(ctx, "abc"))
	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	if got != nil {
		t.Fatalf("got=%v, want=nil", got)
	}

	// destroying a missing session is not an error
	wantNoError(t, store.Destroy(ctx, "abc"))
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	db := memory.New()
	store := newTestStore(t, db, c)
	start := c.Millis()

	sess := map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 1000},
		"user":   "u1",
	}
	wantNoError(t, store.Set(ctx, "abc", sess))

	c.Advance(800 * time.Millisecond)
	touch := map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 1000},
		"user":   "u2",
	}
	wantNoError(t, store.Touch(ctx, "abc", touch))
	rec, err := db.Fetch(ctx, "sess:abc")
	wantNoError(t, err)
	if got, want := rec.Expires, start+1800; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := rec.Session["user"], "u1"; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	c.Advance(800 * time.Millisecond)
	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	if got == nil {
		t.Fatalf("got=nil, want=non-nil")
	}

	// touching an expired session does not revive it
	c.Advance(time.Second)
	wantNoError(t, store.Touch(ctx, "abc", touch))
	got, err = store.Get(ctx, "abc")
	wantNoError(t, err)
	if got != nil {
		t.Fatalf("got=%v, want=nil", got)
	}
	rec, err = db.Fetch(ctx, "sess:abc")
	wantNoError(t, err)
	if got, want := rec.Expires, start+1800; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	// touching a missing session does not create it
	wantNoError(t, store.Touch(ctx, "missing", touch))
	rec, err = db.Fetch(ctx, "sess:missing")
	wantNoError(t, err)
	if rec != nil {
		t.Fatalf("got=%v, want=nil", rec)
	}
}

func TestPrefix(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	logger, _ := test.NewNullLogger()
	store := New(ctx, db, Options{Prefix: "app:", ReapInterval: -1, Logger: logger})
	defer store.ClearInterval()
	if got, want := store.Prefix(), "app:"; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	wantNoError(t, store.Set(ctx, "abc", nil))
	rec, err := db.Fetch(ctx, "app:abc")
	wantNoError(t, err)
	if rec == nil {
		t.Fatalf("got=nil, want=non-nil")
	}
	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	if got == nil || len(got) != 0 {
		t.Fatalf("got=%v, want=empty", got)
	}
}

func TestInvalidSessionID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.New(), newClock())
	if _, err := store.Get(ctx, ""); err != errEmptySessionID {
		t.Fatalf("got=%v, want=%v", err, errEmptySessionID)
	}
	long := make([]byte, storage.MaxIDLength)
	for i := range long {
		long[i] = 'x'
	}
	if err := store.Set(ctx, string(long), nil); err == nil {
		t.Fatalf("got=nil, want=error")
	}
	if err := store.Destroy(ctx, ""); err != errEmptySessionID {
		t.Fatalf("got=%v, want=%v", err, errEmptySessionID)
	}
}

// instrumentedDB wraps a provider, tracking deletes and optionally
// injecting failures.
type instrumentedDB struct {
	storage.Provider

	fetchErr   error
	scanErr    error
	deleteErr  map[string]error
	existsErr  error
	createErr  error
	reverse    bool
	scanBlock  chan struct{}
	inFlight   int32
	maxFlight  int32
	deleted    []string
	mutex      sync.Mutex
	createArgs []int64
}

func (db *instrumentedDB) Fetch(ctx context.Context, id string) (*storage.Record, error) {
	if db.fetchErr != nil {
		return nil, db.fetchErr
	}
	return db.Provider.Fetch(ctx, id)
}

func (db *instrumentedDB) ScanExpired(ctx context.Context, before int64) ([]string, error) {
	if db.scanErr != nil {
		return nil, db.scanErr
	}
	if db.scanBlock != nil {
		// signal the scan has started, then hang until cancelled
		db.scanBlock <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ids, err := db.Provider.ScanExpired(ctx, before)
	if db.reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	}
	return ids, err
}

func (db *instrumentedDB) Delete(ctx context.Context, id string) error {
	n := atomic.AddInt32(&db.inFlight, 1)
	defer atomic.AddInt32(&db.inFlight, -1)
	db.mutex.Lock()
	if n > db.maxFlight {
		db.maxFlight = n
	}
	db.deleted = append(db.deleted, id)
	err := db.deleteErr[id]
	db.mutex.Unlock()
	time.Sleep(time.Millisecond)
	if err != nil {
		return err
	}
	return db.Provider.Delete(ctx, id)
}

func (db *instrumentedDB) TableExists(ctx context.Context) (bool, error) {
	if db.existsErr != nil {
		return false, db.existsErr
	}
	return db.Provider.TableExists(ctx)
}

func (db *instrumentedDB) CreateTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) error {
	db.createArgs = []int64{readCapacityUnits, writeCapacityUnits}
	if db.createErr != nil {
		return db.createErr
	}
	return db.Provider.CreateTable(ctx, readCapacityUnits, writeCapacityUnits)
}

func TestReap(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	mem := memory.New()
	db := &instrumentedDB{Provider: mem, reverse: true}
	store := newTestStore(t, db, c)

	// N expired and M current sessions
	expired := []string{"e1", "e2", "e3", "e4"}
	current := []string{"c1", "c2", "c3"}
	for _, sid := range expired {
		wantNoError(t, store.Set(ctx, sid, map[string]interface{}{
			"cookie": map[string]interface{}{"maxAge": 1000},
		}))
	}
	for _, sid := range current {
		wantNoError(t, store.Set(ctx, sid, map[string]interface{}{
			"cookie": map[string]interface{}{"maxAge": 10000},
		}))
	}
	// expired record written by another user of the table
	wantNoError(t, mem.Save(ctx, &storage.Record{ID: "other:x", Expires: 1}))

	c.Advance(5 * time.Second)
	wantNoError(t, store.Reap(ctx))

	if got, want := db.maxFlight, int32(1); got != want {
		t.Fatalf("max in-flight deletes: got=%v, want=%v", got, want)
	}
	if got, want := db.deleted, []string{"sess:e4", "sess:e3", "sess:e2", "sess:e1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := mem.Len(), len(current)+1; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	for _, sid := range current {
		got, err := store.Get(ctx, sid)
		wantNoError(t, err)
		if got == nil {
			t.Fatalf("%s: got=nil, want=non-nil", sid)
		}
	}

	// nothing left to reap
	db.deleted = nil
	wantNoError(t, store.Reap(ctx))
	if got, want := len(db.deleted), 0; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestReapScanError(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	scanErr := errors.New("throttled")
	db := &instrumentedDB{Provider: memory.New()}
	store := newTestStore(t, db, c)

	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 1},
	}))
	c.Advance(time.Second)
	db.scanErr = scanErr
	if got, want := store.Reap(ctx), scanErr; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := len(db.deleted), 0; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := testutil.ToFloat64(store.metrics.reapFailures), float64(1); got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestReapContinuesAfterDeleteError(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	mem := memory.New()
	db := &instrumentedDB{
		Provider:  mem,
		deleteErr: map[string]error{"sess:b": errors.New("access denied")},
	}
	store := newTestStore(t, db, c)

	for _, sid := range []string{"a", "b", "c"} {
		wantNoError(t, store.Set(ctx, sid, map[string]interface{}{
			"cookie": map[string]interface{}{"maxAge": 1},
		}))
	}
	c.Advance(time.Second)
	wantNoError(t, store.Reap(ctx))
	if got, want := db.deleted, []string{"sess:a", "sess:b", "sess:c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := mem.Len(), 1; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := testutil.ToFloat64(store.metrics.reaped), float64(2); got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestGetError(t *testing.T) {
	ctx := context.Background()
	fetchErr := errors.New("network failure")
	db := &instrumentedDB{Provider: memory.New(), fetchErr: fetchErr}
	store := newTestStore(t, db, newClock())

	got, err := store.Get(ctx, "abc")
	if err != fetchErr {
		t.Fatalf("got=%v, want=%v", err, fetchErr)
	}
	if got != nil {
		t.Fatalf("got=%v, want=nil", got)
	}
	if err := store.Touch(ctx, "abc", nil); err != fetchErr {
		t.Fatalf("got=%v, want=%v", err, fetchErr)
	}
}

func TestCreateTable(t *testing.T) {
	ctx := context.Background()
	mem := memory.New().WithoutTable()
	db := &instrumentedDB{Provider: mem}
	logger, hook := test.NewNullLogger()
	store := New(ctx, db, Options{
		ReapInterval:       -1,
		Logger:             logger,
		ReadCapacityUnits:  10,
		WriteCapacityUnits: 0,
	})
	defer store.ClearInterval()

	if got, want := db.createArgs, []int64{10, DefaultCapacityUnits}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	exists, err := mem.TableExists(ctx)
	wantNoError(t, err)
	if !exists {
		t.Fatalf("got=%v, want=%v", exists, true)
	}
	if got, want := hook.LastEntry().Level, logrus.InfoLevel; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	// table exists, so no attempt to create
	db.createArgs = nil
	store = New(ctx, db, Options{ReapInterval: -1, Logger: logger})
	defer store.ClearInterval()
	if db.createArgs != nil {
		t.Fatalf("got=%v, want=nil", db.createArgs)
	}
}

func TestCreateTableFailure(t *testing.T) {
	ctx := context.Background()
	db := &instrumentedDB{
		Provider:  memory.New().WithoutTable(),
		existsErr: errors.New("access denied"),
		createErr: errors.New("limit exceeded"),
	}
	logger, hook := test.NewNullLogger()
	store := New(ctx, db, Options{ReapInterval: -1, Logger: logger})
	defer store.ClearInterval()

	if store == nil {
		t.Fatalf("got=nil, want=non-nil")
	}
	if got, want := db.createArgs, []int64{DefaultCapacityUnits, DefaultCapacityUnits}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	entries := hook.AllEntries()
	if got, want := len(entries), 2; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := entries[0].Level, logrus.WarnLevel; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := entries[1].Level, logrus.ErrorLevel; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestReapInterval(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	db := memory.New()
	logger, _ := test.NewNullLogger()
	store := New(ctx, db, Options{
		ReapInterval: 10 * time.Millisecond,
		Logger:       logger,
		TimeNow:      c.Now,
	})

	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 1},
	}))
	c.Advance(time.Second)

	deadline := time.Now().Add(5 * time.Second)
	for db.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expired session not reaped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	store.ClearInterval()
	store.ClearInterval()

	// no sweep after ClearInterval returns
	wantNoError(t, store.Set(ctx, "def", map[string]interface{}{
		"cookie": map[string]interface{}{"maxAge": 1},
	}))
	c.Advance(time.Second)
	time.Sleep(50 * time.Millisecond)
	if got, want := db.Len(), 1; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestClearIntervalCancelsSweep(t *testing.T) {
	ctx := context.Background()
	db := &instrumentedDB{Provider: memory.New(), scanBlock: make(chan struct{})}
	logger, hook := test.NewNullLogger()
	store := New(ctx, db, Options{
		ReapInterval: 10 * time.Millisecond,
		Logger:       logger,
	})

	select {
	case <-db.scanBlock:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep did not start")
	}

	cleared := make(chan struct{})
	go func() {
		store.ClearInterval()
		close(cleared)
	}()
	select {
	case <-cleared:
	case <-time.After(5 * time.Second):
		t.Fatalf("ClearInterval blocked on a hung scan")
	}
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			t.Errorf("unexpected warning: %s", entry.Message)
		}
	}
}

func TestReapCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newClock()
	db := &instrumentedDB{Provider: memory.New()}
	store := newTestStore(t, db, c)
	for _, sid := range []string{"a", "b"} {
		wantNoError(t, store.Set(ctx, sid, map[string]interface{}{
			"cookie": map[string]interface{}{"maxAge": 1},
		}))
	}
	c.Advance(time.Second)

	cancel()
	if got, want := store.Reap(ctx), context.Canceled; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got := len(db.deleted); got != 0 {
		t.Fatalf("got=%v, want=0", got)
	}
}

func TestNoPrefix(t *testing.T) {
	ctx := context.Background()
	db := memory.New()
	logger, _ := test.NewNullLogger()
	store := New(ctx, db, Options{Prefix: "ignored:", NoPrefix: true, ReapInterval: -1, Logger: logger})
	if got, want := store.Prefix(), ""; got != want {
		t.Fatalf("got=%q, want=%q", got, want)
	}

	wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{"user": "u1"}))
	rec, err := db.Fetch(ctx, "abc")
	wantNoError(t, err)
	if rec == nil {
		t.Fatalf("got=nil, want=non-nil")
	}
	got, err := store.Get(ctx, "abc")
	wantNoError(t, err)
	if got, want := got["user"], "u1"; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func TestClearIntervalWithoutSweep(t *testing.T) {
	store := newTestStore(t, memory.New(), newClock())
	store.ClearInterval()
	store.ClearInterval()
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	c := newClock()
	reg := prometheus.NewRegistry()
	logger, _ := test.NewNullLogger()
	newStore := func() *Store {
		return New(ctx, memory.New(), Options{
			ReapInterval: -1,
			Logger:       logger,
			TimeNow:      c.Now,
			Registerer:   reg,
		})
	}
	store1 := newStore()
	store2 := newStore()

	for _, store := range []*Store{store1, store2} {
		wantNoError(t, store.Set(ctx, "abc", map[string]interface{}{
			"cookie": map[string]interface{}{"maxAge": 1},
		}))
	}
	c.Advance(time.Second)
	for _, store := range []*Store{store1, store2} {
		got, err := store.Get(ctx, "abc")
		wantNoError(t, err)
		if got != nil {
			t.Fatalf("got=%v, want=nil", got)
		}
		wantNoError(t, store.Reap(ctx))
	}

	// both stores share the registered counters
	if got, want := testutil.ToFloat64(store1.metrics.expiredReads), float64(2); got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := testutil.ToFloat64(store2.metrics.reaped), float64(2); got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	count, err := testutil.GatherAndCount(reg)
	wantNoError(t, err)
	if got, want := count, 3; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func wantNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
}
