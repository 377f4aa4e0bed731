package calendarcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/calndr/calndr-go/cache"
	"github.com/calndr/calndr-go/cachekey"
	"github.com/calndr/calndr-go/invalidate"
	"github.com/calndr/calndr-go/store"
	"github.com/calndr/calndr-go/ttlpolicy"
)

var custodianID = uuid.MustParse("0aa9f6c1-5a40-4a1c-8f11-0000000000aa")

// fixedNow pins "today" to 2025-01-15 so December 2024 is settled.
func fixedNow() time.Time {
	return time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

// spyStore records the TTL of the last Set so tests can assert policy
// resolution without reaching into the backend.
type spyStore struct {
	cache.Store
	mu      sync.Mutex
	lastTTL time.Duration
	sets    int
}

func (s *spyStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.lastTTL = ttl
	s.sets++
	s.mu.Unlock()
	return s.Store.Set(ctx, key, val, ttl)
}

type fixture struct {
	orch  *Orchestrator
	spy   *spyStore
	mock  sqlmock.Sqlmock
	keys  *cachekey.Builder
	store cache.Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem, err := cache.NewMemory(1000, cache.NewMetrics(nil))
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { _ = mem.Close() })
	spy := &spyStore{Store: mem}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	keys := cachekey.NewBuilder("")
	pol := ttlpolicy.New(ttlpolicy.Config{}, fixedNow)
	disp := invalidate.New(spy, keys, nil)
	orch := New(spy, store.New(db, 0, nil), keys, pol, disp, nil, opts...)
	return &fixture{orch: orch, spy: spy, mock: mock, keys: keys, store: spy}
}

func custodyCols() []string {
	return []string{"id", "date", "custodian_id", "handoff_day", "handoff_time", "handoff_location", "first_name"}
}

func TestCustodyEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")

	// 1. Cold cache: the database is queried and returns 3 rows.
	f.mock.ExpectQuery("FROM custody c").
		WithArgs(int64(7), start, end).
		WillReturnRows(sqlmock.NewRows(custodyCols()).
			AddRow(1, day(t, "2024-12-01"), custodianID.String(), false, nil, nil, "Jane").
			AddRow(2, day(t, "2024-12-02"), custodianID.String(), true, "17:30:00", nil, "Jane").
			AddRow(3, day(t, "2024-12-03"), custodianID.String(), false, nil, nil, "Jane"))

	days, err := f.orch.Custody(ctx, 7, start, end)
	if err != nil {
		t.Fatalf("Custody (miss): %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("got %d rows, want 3", len(days))
	}

	// December 2024 is entirely past, so the settled TTL applies.
	if f.spy.lastTTL != ttlpolicy.DefaultCustodySettled {
		t.Fatalf("cached with TTL %v, want settled %v", f.spy.lastTTL, ttlpolicy.DefaultCustodySettled)
	}

	// 2. Warm cache: the same request is served without a database call
	// (sqlmock would reject an unexpected query).
	days, err = f.orch.Custody(ctx, 7, start, end)
	if err != nil {
		t.Fatalf("Custody (hit): %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("got %d cached rows, want 3", len(days))
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	// 3. A custody write for the family invalidates the scope.
	f.mock.ExpectExec("INSERT INTO custody").
		WillReturnResult(sqlmock.NewResult(99, 1))
	id, err := f.orch.SetCustodyDay(ctx, 7, store.CustodyChange{
		Date:        day(t, "2024-12-04"),
		CustodianID: custodianID,
	})
	if err != nil {
		t.Fatalf("SetCustodyDay: %v", err)
	}
	if id != 99 {
		t.Fatalf("got id %d, want the database-generated 99", id)
	}

	// 4. The next read misses again and reflects the new row.
	f.mock.ExpectQuery("FROM custody c").
		WithArgs(int64(7), start, end).
		WillReturnRows(sqlmock.NewRows(custodyCols()).
			AddRow(1, day(t, "2024-12-01"), custodianID.String(), false, nil, nil, "Jane").
			AddRow(2, day(t, "2024-12-02"), custodianID.String(), true, "17:30:00", nil, "Jane").
			AddRow(3, day(t, "2024-12-03"), custodianID.String(), false, nil, nil, "Jane").
			AddRow(99, day(t, "2024-12-04"), custodianID.String(), false, nil, nil, "Jane"))

	days, err = f.orch.Custody(ctx, 7, start, end)
	if err != nil {
		t.Fatalf("Custody (after write): %v", err)
	}
	if len(days) != 4 {
		t.Fatalf("got %d rows after write, want 4", len(days))
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLiveRangeUsesLiveTTL(t *testing.T) {
	f := newFixture(t)
	// Range ends after "today" (2025-01-15).
	start, end := day(t, "2025-01-01"), day(t, "2025-01-31")

	f.mock.ExpectQuery("FROM custody c").
		WillReturnRows(sqlmock.NewRows(custodyCols()))

	if _, err := f.orch.Custody(context.Background(), 7, start, end); err != nil {
		t.Fatalf("Custody: %v", err)
	}
	if f.spy.lastTTL != ttlpolicy.DefaultCustodyLive {
		t.Fatalf("cached with TTL %v, want live %v", f.spy.lastTTL, ttlpolicy.DefaultCustodyLive)
	}
}

func TestEmptyResultIsCached(t *testing.T) {
	f := newFixture(t)
	start, end := day(t, "2024-11-01"), day(t, "2024-11-30")

	// One query only: the empty month is a valid cached value, not a
	// perpetual miss.
	f.mock.ExpectQuery("FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_id", "date", "content", "position", "event_type"}))

	for i := 0; i < 2; i++ {
		events, err := f.orch.Events(context.Background(), 7, start, end)
		if err != nil {
			t.Fatalf("Events call %d: %v", i, err)
		}
		if len(events) != 0 {
			t.Fatalf("call %d: got %d events, want 0", i, len(events))
		}
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDatabaseErrorsAreNotCached(t *testing.T) {
	f := newFixture(t)
	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")

	boom := errors.New("deadlock")
	f.mock.ExpectQuery("FROM custody c").WillReturnError(boom)

	if _, err := f.orch.Custody(context.Background(), 7, start, end); !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped %v", err, boom)
	}
	if _, ok, _ := f.store.Get(context.Background(), f.keys.Custody(7, start, end)); ok {
		t.Fatal("error result must not be cached")
	}

	// The next request retries the database and succeeds.
	f.mock.ExpectQuery("FROM custody c").
		WillReturnRows(sqlmock.NewRows(custodyCols()).
			AddRow(1, day(t, "2024-12-01"), custodianID.String(), false, nil, nil, "Jane"))
	days, err := f.orch.Custody(context.Background(), 7, start, end)
	if err != nil {
		t.Fatalf("Custody retry: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("got %d rows, want 1", len(days))
	}
}

func TestCorruptPayloadTreatedAsMissAndOverwritten(t *testing.T) {
	f := newFixture(t)
	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")
	key := f.keys.Custody(7, start, end)

	if err := f.store.Set(context.Background(), key, []byte("{not json"), time.Minute); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	f.mock.ExpectQuery("FROM custody c").
		WillReturnRows(sqlmock.NewRows(custodyCols()).
			AddRow(1, day(t, "2024-12-01"), custodianID.String(), false, nil, nil, "Jane"))

	days, err := f.orch.Custody(context.Background(), 7, start, end)
	if err != nil {
		t.Fatalf("Custody: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("got %d rows, want 1", len(days))
	}

	// The corrupt entry was overwritten by the populate step.
	raw, ok, _ := f.store.Get(context.Background(), key)
	if !ok || string(raw) == "{not json" {
		t.Fatal("populate should have replaced the corrupt entry")
	}
}

func TestReversedRangeHitsTheSameEntry(t *testing.T) {
	f := newFixture(t)
	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")

	f.mock.ExpectQuery("FROM custody c").
		WithArgs(int64(7), start, end).
		WillReturnRows(sqlmock.NewRows(custodyCols()))

	if _, err := f.orch.Custody(context.Background(), 7, start, end); err != nil {
		t.Fatalf("Custody: %v", err)
	}
	// Boundaries swapped: same canonical key, no second query.
	if _, err := f.orch.Custody(context.Background(), 7, end, start); err != nil {
		t.Fatalf("Custody (reversed): %v", err)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestDegradedCacheFallsBackToDatabase(t *testing.T) {
	// Unreachable Redis: every read must still succeed via the database,
	// within the cache op timeout bound, with no error surfaced.
	down := cache.NewRedis(cache.RedisConfig{Addr: "localhost:1", OpTimeout: 300 * time.Millisecond}, nil, cache.NewMetrics(nil))
	t.Cleanup(func() { _ = down.Close() })

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	keys := cachekey.NewBuilder("")
	orch := New(down, store.New(db, 0, nil), keys,
		ttlpolicy.New(ttlpolicy.Config{}, fixedNow), invalidate.New(down, keys, nil), nil)

	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")
	for i := 0; i < 2; i++ {
		mock.ExpectQuery("FROM custody c").
			WillReturnRows(sqlmock.NewRows(custodyCols()).
				AddRow(1, day(t, "2024-12-01"), custodianID.String(), false, nil, nil, "Jane"))
	}

	for i := 0; i < 2; i++ {
		days, err := orch.Custody(context.Background(), 7, start, end)
		if err != nil {
			t.Fatalf("Custody %d with degraded cache: %v", i, err)
		}
		if len(days) != 1 {
			t.Fatalf("call %d: got %d rows, want 1", i, len(days))
		}
	}
}

func TestCreateEventInvalidatesFamilyScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")

	// Warm the events cache.
	f.mock.ExpectQuery("FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_id", "date", "content", "position", "event_type"}).
			AddRow(10, 7, day(t, "2024-12-24"), "dentist", nil, "regular"))
	if _, err := f.orch.Events(ctx, 7, start, end); err != nil {
		t.Fatalf("Events: %v", err)
	}

	f.mock.ExpectExec("INSERT INTO events").
		WillReturnResult(sqlmock.NewResult(123, 1))
	id, err := f.orch.CreateEvent(ctx, 7, day(t, "2024-12-25"), "holiday", nil)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id != 123 {
		t.Fatalf("got id %d, want the database-generated 123", id)
	}

	if _, ok, _ := f.store.Get(ctx, f.keys.Events(7, start, end)); ok {
		t.Fatal("events cache should be invalidated by the write")
	}
}

func TestSingleFlightCollapsesConcurrentMisses(t *testing.T) {
	f := newFixture(t, WithSingleFlight())
	start, end := day(t, "2024-12-01"), day(t, "2024-12-31")

	// Exactly one expectation: if more than one goroutine reached the
	// database, sqlmock would fail the extra query.
	f.mock.ExpectQuery("FROM custody c").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows(custodyCols()).
			AddRow(1, day(t, "2024-12-01"), custodianID.String(), false, nil, nil, "Jane"))

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			days, err := f.orch.Custody(context.Background(), 7, start, end)
			if err == nil && len(days) != 1 {
				err = errors.New("wrong row count")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestProfileReadThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mock.ExpectQuery("FROM users WHERE id").
		WithArgs(custodianID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_id", "first_name", "last_name", "email"}).
			AddRow(custodianID.String(), 7, "Jane", "Smith", "jane@example.com"))

	for i := 0; i < 2; i++ {
		p, err := f.orch.Profile(ctx, custodianID)
		if err != nil {
			t.Fatalf("Profile call %d: %v", i, err)
		}
		if p.FirstName != "Jane" {
			t.Fatalf("call %d: got %q", i, p.FirstName)
		}
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	// A profile mutation elsewhere invalidates the user scope; the next
	// read goes back to the database.
	f.orch.ProfileUpdated(ctx, custodianID)
	f.mock.ExpectQuery("FROM users WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "family_id", "first_name", "last_name", "email"}).
			AddRow(custodianID.String(), 7, "Janet", "Smith", "jane@example.com"))
	p, err := f.orch.Profile(ctx, custodianID)
	if err != nil {
		t.Fatalf("Profile after invalidation: %v", err)
	}
	if p.FirstName != "Janet" {
		t.Fatalf("got %q, want the post-mutation name", p.FirstName)
	}
}
