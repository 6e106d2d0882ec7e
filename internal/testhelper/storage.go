package testhelper

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jjeffery/dynamosessions/storage"
)

// TestStorageProvider runs a set of common tests on a storage.Provider implementation.
// The provider's table is expected to exist and to contain no records that expire
// before the year 2000.
func TestStorageProvider(t *testing.T, db storage.Provider) {
	replaceTest(t, db)
	scanTest(t, db)
	raceTest(t, db)
}

func replaceTest(t *testing.T, db storage.Provider) {
	ctx := context.Background()
	const id = "replace-test-id"
	defer db.Delete(ctx, id)

	rec, err := db.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if rec != nil {
		t.Fatalf("got=%v, want=nil", rec)
	}

	first := storage.Record{
		ID:      id,
		Expires: time.Now().Add(time.Hour).UnixNano() / int64(time.Millisecond),
		Type:    storage.RecordType,
		Session: map[string]interface{}{
			"user":  "u1",
			"count": float64(3),
			"cookie": map[string]interface{}{
				"maxAge": float64(3600000),
			},
			"flags": []interface{}{"a", "b"},
		},
	}
	if err := db.Save(ctx, &first); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	rec, err = db.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if !reflect.DeepEqual(rec, &first) {
		t.Fatalf("got=%+v, want=%+v", rec, &first)
	}

	// second save must fully replace the first
	second := storage.Record{
		ID:      id,
		Expires: first.Expires + 1000,
		Type:    storage.RecordType,
		Session: map[string]interface{}{
			"other": true,
		},
	}
	if err := db.Save(ctx, &second); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	rec, err = db.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if !reflect.DeepEqual(rec, &second) {
		t.Fatalf("got=%+v, want=%+v", rec, &second)
	}

	// first delete
	if err := db.Delete(ctx, id); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}

	// second delete should succeed, even though the record is gone
	if err := db.Delete(ctx, id); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}

	rec, err = db.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	if rec != nil {
		t.Fatalf("got=%v, want=nil", rec)
	}
}

func scanTest(t *testing.T, db storage.Provider) {
	ctx := context.Background()

	// expiry times are in the distant past so that they do not collide
	// with records written by other tests
	const before = 946684800000 // 2000-01-01
	records := []storage.Record{
		{ID: "scan-expired-1", Expires: before - 2000},
		{ID: "scan-expired-2", Expires: before - 1},
		{ID: "scan-boundary", Expires: before},
		{ID: "scan-current", Expires: before + 1000},
		{ID: "scan-no-expiry"},
	}
	for i := range records {
		rec := &records[i]
		rec.Type = storage.RecordType
		rec.Session = map[string]interface{}{"i": float64(i)}
		if err := db.Save(ctx, rec); err != nil {
			t.Fatalf("%s: got=%v, want=nil", rec.ID, err)
		}
		defer db.Delete(ctx, rec.ID)
	}

	ids, err := db.ScanExpired(ctx, before)
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	sort.Strings(ids)
	if got, want := ids, []string{"scan-expired-1", "scan-expired-2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
}

func raceTest(t *testing.T, db storage.Provider) {
	const loopCount = 10
	var wg sync.WaitGroup
	for i := 0; i < loopCount; i++ {
		wg.Add(1)
		go func(i int) {
			raceTest1(t, db, i, true)
			wg.Done()
		}(i)

		wg.Add(1)
		go func(i int) {
			raceTest1(t, db, i, false)
			wg.Done()
		}(i)
	}
	wg.Wait()
}

func raceTest1(t *testing.T, db storage.Provider, instance int, add bool) {
	const loopCount = 10
	ctx := context.Background()
	for i := 0; i < loopCount; i++ {
		id := fmt.Sprintf("record-%d-%d", instance, i)
		if add {
			rec := storage.Record{
				ID:      id,
				Type:    storage.RecordType,
				Expires: time.Now().Add(12*time.Hour).UnixNano() / int64(time.Millisecond),
				Session: map[string]interface{}{"i": float64(i)},
			}
			if err := db.Save(ctx, &rec); err != nil {
				t.Errorf("%d: %d: %v", instance, i, err)
				return
			}
		} else {
			for {
				rec, err := db.Fetch(ctx, id)
				if err != nil {
					t.Errorf("%d: %d: %v", instance, i, err)
					return
				}
				if rec != nil {
					if got, want := rec.Session["i"], float64(i); got != want {
						t.Errorf("%d: %d: got=%v, want=%v", instance, i, got, want)
					}
					if err := db.Delete(ctx, id); err != nil {
						t.Errorf("%d: %d: %v", instance, i, err)
						return
					}
					rec, err = db.Fetch(ctx, id)
					if err != nil {
						t.Errorf("%d: %d: %v", instance, i, err)
						return
					}
					if rec != nil {
						t.Errorf("%d: %d: got=%v, want=nil", instance, i, rec)
					}
					break
				}
				time.Sleep(time.Millisecond * 10)
			}
		}
	}
}
