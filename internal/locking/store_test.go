package locking

import (
	"context"
	"testing"
	"time"
)

func testSeat(number string) SeatKey {
	return SeatKey{ConcertID: "c1", SectionName: "VIP", SeatNumber: number}
}

// newClockedStore returns a memory store whose clock the test controls.
func newClockedStore(start time.Time) (*MemoryStore, *time.Time) {
	now := start
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	return store, &now
}

func TestMemoryStoreAcquireGrant(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	ctx := context.Background()

	outcome, record, err := store.Acquire(ctx, testSeat("1"), "wallet-a", OperationSelecting, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if outcome != OutcomeGranted {
		t.Fatalf("expected grant, got %v", outcome)
	}
	if record.Holder != "wallet-a" || record.Operation != OperationSelecting {
		t.Fatalf("unexpected record: %+v", record)
	}
	if !record.ExpiresAt.After(record.AcquiredAt) {
		t.Fatalf("expiry must be after acquisition: %+v", record)
	}
}

func TestMemoryStoreAcquireConflict(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	ctx := context.Background()
	seat := testSeat("1")

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	outcome, record, err := store.Acquire(ctx, seat, "wallet-b", OperationSelecting, time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if outcome != OutcomeConflict {
		t.Fatalf("expected conflict, got %v", outcome)
	}
	if record.Holder != "wallet-a" {
		t.Fatalf("conflict record should describe the current owner, got %q", record.Holder)
	}

	// A different seat in the same concert is unaffected.
	outcome, _, err = store.Acquire(ctx, testSeat("2"), "wallet-b", OperationSelecting, time.Minute)
	if err != nil || outcome != OutcomeGranted {
		t.Fatalf("expected grant on free seat, got %v (%v)", outcome, err)
	}
}

func TestMemoryStoreSameHolderUpgrade(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	ctx := context.Background()
	seat := testSeat("1")

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire selecting: %v", err)
	}

	outcome, record, err := store.Acquire(ctx, seat, "wallet-a", OperationProcessing, time.Minute)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if outcome != OutcomeRenewed {
		t.Fatalf("expected renewal, got %v", outcome)
	}
	if record.Operation != OperationProcessing {
		t.Fatalf("expected upgrade to processing, got %q", record.Operation)
	}

	// A later selecting request must not downgrade the processing hold.
	_, record, err = store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if record.Operation != OperationProcessing {
		t.Fatalf("processing lock was downgraded to %q", record.Operation)
	}
}

func TestMemoryStoreExpiredLockIsReclaimable(t *testing.T) {
	store, now := newClockedStore(time.Now())
	ctx := context.Background()
	seat := testSeat("1")

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	*now = now.Add(2 * time.Minute)

	outcome, record, err := store.Acquire(ctx, seat, "wallet-b", OperationSelecting, time.Minute)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if outcome != OutcomeGranted {
		t.Fatalf("expected grant over expired lock, got %v", outcome)
	}
	if record.Holder != "wallet-b" {
		t.Fatalf("expected new holder, got %q", record.Holder)
	}
}

func TestMemoryStoreReleaseOwnerChecked(t *testing.T) {
	store, _ := newClockedStore(time.Now())
	ctx := context.Background()
	seat := testSeat("1")

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	released, err := store.Release(ctx, seat, "wallet-b")
	if err != nil {
		t.Fatalf("release by stranger: %v", err)
	}
	if released {
		t.Fatal("non-holder must not release the lock")
	}

	released, err = store.Release(ctx, seat, "wallet-a")
	if err != nil || !released {
		t.Fatalf("holder release failed: %v %v", released, err)
	}

	record, err := store.Get(ctx, seat)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record != nil {
		t.Fatalf("lock should be gone, got %+v", record)
	}
}

func TestMemoryStoreRenew(t *testing.T) {
	store, now := newClockedStore(time.Now())
	ctx := context.Background()
	seat := testSeat("1")

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if ok, _ := store.Renew(ctx, seat, "wallet-b", time.Minute); ok {
		t.Fatal("non-holder must not renew")
	}

	*now = now.Add(30 * time.Second)
	if ok, _ := store.Renew(ctx, seat, "wallet-a", time.Minute); !ok {
		t.Fatal("holder renew failed")
	}

	record, _ := store.Get(ctx, seat)
	want := now.Add(time.Minute)
	if !record.ExpiresAt.Equal(want) {
		t.Fatalf("expiry not extended: got %v want %v", record.ExpiresAt, want)
	}

	// Past the new expiry a renew must fail; there is nothing left to extend.
	*now = now.Add(2 * time.Minute)
	if ok, _ := store.Renew(ctx, seat, "wallet-a", time.Minute); ok {
		t.Fatal("expired lock must not renew")
	}
}

func TestMemoryStoreReapExpired(t *testing.T) {
	store, now := newClockedStore(time.Now())
	ctx := context.Background()

	if _, _, err := store.Acquire(ctx, testSeat("1"), "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, _, err := store.Acquire(ctx, testSeat("2"), "wallet-b", OperationProcessing, 10*time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	reclaimed, err := store.ReapExpired(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected 1 reclaimed lock, got %d", len(reclaimed))
	}
	if reclaimed[0].Seat != testSeat("1") {
		t.Fatalf("wrong seat reclaimed: %+v", reclaimed[0].Seat)
	}

	records, err := store.ListByConcert(ctx, "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Seat != testSeat("2") {
		t.Fatalf("surviving lock wrong: %+v", records)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store, now := newClockedStore(time.Now())
	ctx := context.Background()

	store.Acquire(ctx, testSeat("1"), "wallet-a", OperationSelecting, time.Minute)
	store.Acquire(ctx, testSeat("2"), "wallet-a", OperationProcessing, time.Minute)
	store.Acquire(ctx, testSeat("3"), "wallet-b", OperationSelecting, time.Second)

	*now = now.Add(30 * time.Second)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ActiveSelectingLocks != 1 || stats.ActiveProcessingLocks != 1 {
		t.Fatalf("unexpected per-operation counts: %+v", stats)
	}
	if stats.TotalActiveLocks != 2 {
		t.Fatalf("expired lock counted: %+v", stats)
	}
	if stats.ActiveHolders != 1 {
		t.Fatalf("expected single distinct holder, got %d", stats.ActiveHolders)
	}
}

func TestParseSeatKey(t *testing.T) {
	seat := testSeat("12")
	parsed, ok := ParseSeatKey(seat.String())
	if !ok {
		t.Fatal("round trip failed")
	}
	if parsed != seat {
		t.Fatalf("got %+v want %+v", parsed, seat)
	}

	if _, ok := ParseSeatKey("missing-parts"); ok {
		t.Fatal("malformed key must not parse")
	}
	if _, ok := ParseSeatKey("a:b:"); ok {
		t.Fatal("empty seat number must not parse")
	}
}
