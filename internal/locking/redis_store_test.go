package locking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)

	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client)
}

func TestRedisStoreAcquireAndConflict(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	seat := testSeat("1")

	outcome, record, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if outcome != OutcomeGranted {
		t.Fatalf("expected grant, got %v", outcome)
	}
	if record.Holder != "wallet-a" || record.Operation != OperationSelecting {
		t.Fatalf("unexpected record: %+v", record)
	}

	outcome, record, err = store.Acquire(ctx, seat, "wallet-b", OperationProcessing, time.Minute)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if outcome != OutcomeConflict {
		t.Fatalf("expected conflict, got %v", outcome)
	}
	if record.Holder != "wallet-a" {
		t.Fatalf("conflict record should carry the owner, got %q", record.Holder)
	}
}

func TestRedisStoreSameHolderUpgrade(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	seat := testSeat("1")

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	outcome, record, err := store.Acquire(ctx, seat, "wallet-a", OperationProcessing, time.Minute)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if outcome != OutcomeRenewed {
		t.Fatalf("expected renewal, got %v", outcome)
	}
	if record.Operation != OperationProcessing {
		t.Fatalf("expected processing after upgrade, got %q", record.Operation)
	}

	// Processing never downgrades on a later selecting request.
	_, record, err = store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute)
	if err != nil {
		t.Fatalf("re-acquire: %v", err)
	}
	if record.Operation != OperationProcessing {
		t.Fatalf("processing lock was downgraded to %q", record.Operation)
	}
}

func TestRedisStoreReleaseOwnerChecked(t *testing.T) {
	store := newTestRedisStore(t)
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
		t.Fatal("non-holder must not release")
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

	// Releasing an absent lock is a clean no-op.
	released, err = store.Release(ctx, seat, "wallet-a")
	if err != nil || released {
		t.Fatalf("release of absent lock: %v %v", released, err)
	}
}

func TestRedisStoreRenew(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	seat := testSeat("1")

	if ok, _ := store.Renew(ctx, seat, "wallet-a", time.Minute); ok {
		t.Fatal("renew without a lock must fail")
	}

	if _, _, err := store.Acquire(ctx, seat, "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if ok, _ := store.Renew(ctx, seat, "wallet-b", time.Minute); ok {
		t.Fatal("non-holder renew must succeed only for the owner")
	}

	ok, err := store.Renew(ctx, seat, "wallet-a", 5*time.Minute)
	if err != nil || !ok {
		t.Fatalf("holder renew failed: %v %v", ok, err)
	}

	record, err := store.Get(ctx, seat)
	if err != nil || record == nil {
		t.Fatalf("get after renew: %v", err)
	}
	if time.Until(record.ExpiresAt) < 4*time.Minute {
		t.Fatalf("expiry not extended, expires at %v", record.ExpiresAt)
	}
}

func TestRedisStoreReapExpired(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if _, _, err := store.Acquire(ctx, testSeat("1"), "wallet-a", OperationSelecting, time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, _, err := store.Acquire(ctx, testSeat("2"), "wallet-b", OperationProcessing, time.Hour); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	reclaimed, err := store.ReapExpired(ctx, time.Now().Add(5*time.Minute))
	if err != nil {
		t.Fatalf("reap: %v", err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected 1 reclaimed lock, got %d", len(reclaimed))
	}
	if reclaimed[0].Seat != testSeat("1") || reclaimed[0].Holder != "wallet-a" {
		t.Fatalf("wrong lock reclaimed: %+v", reclaimed[0])
	}

	records, err := store.ListByConcert(ctx, "c1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Seat != testSeat("2") {
		t.Fatalf("surviving lock wrong: %+v", records)
	}

	// A second sweep finds nothing new.
	reclaimed, err = store.ReapExpired(ctx, time.Now().Add(5*time.Minute))
	if err != nil {
		t.Fatalf("second reap: %v", err)
	}
	if len(reclaimed) != 0 {
		t.Fatalf("expected empty sweep, got %+v", reclaimed)
	}
}

func TestRedisStoreStats(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	store.Acquire(ctx, testSeat("1"), "wallet-a", OperationSelecting, time.Hour)
	store.Acquire(ctx, testSeat("2"), "wallet-a", OperationProcessing, time.Hour)
	store.Acquire(ctx, testSeat("3"), "wallet-b", OperationSelecting, time.Hour)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ActiveSelectingLocks != 2 || stats.ActiveProcessingLocks != 1 {
		t.Fatalf("unexpected per-operation counts: %+v", stats)
	}
	if stats.TotalActiveLocks != 3 || stats.ActiveHolders != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
}

func TestRedisStorePreloadScripts(t *testing.T) {
	store := newTestRedisStore(t)
	if err := store.PreloadScripts(context.Background()); err != nil {
		t.Fatalf("preload: %v", err)
	}

	// Preloaded scripts still serve a full acquire round trip.
	outcome, _, err := store.Acquire(context.Background(), testSeat("1"), "wallet-a", OperationSelecting, time.Minute)
	if err != nil || outcome != OutcomeGranted {
		t.Fatalf("acquire after preload: %v (%v)", outcome, err)
	}
}
