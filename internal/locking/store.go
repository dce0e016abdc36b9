package locking

import (
	"context"
	"sync"
	"time"
)

// AcquireOutcome is the store-level result of an acquire attempt.
type AcquireOutcome int

const (
	// OutcomeGranted means a fresh lock was created for the holder.
	OutcomeGranted AcquireOutcome = iota
	// OutcomeRenewed means the holder already owned the seat; the lock was
	// extended and possibly upgraded to a stronger operation.
	OutcomeRenewed
	// OutcomeConflict means another holder owns an unexpired lock.
	OutcomeConflict
)

// Store is the key-value contract both lock backends implement. Every method
// that mutates state must be atomic per seat so the coordinator's
// check-then-act sequence cannot interleave for the same key.
type Store interface {
	// Acquire grants, renews, or rejects a lock. On OutcomeConflict the
	// returned record describes the current owner; on grant/renew it is the
	// record that was written.
	Acquire(ctx context.Context, seat SeatKey, holder string, op Operation, ttl time.Duration) (AcquireOutcome, *LockRecord, error)

	// Release removes the lock only if holder owns it.
	Release(ctx context.Context, seat SeatKey, holder string) (bool, error)

	// Renew extends an unexpired lock owned by holder.
	Renew(ctx context.Context, seat SeatKey, holder string, ttl time.Duration) (bool, error)

	// Get returns the lock for a seat, expired or not, nil when absent.
	Get(ctx context.Context, seat SeatKey) (*LockRecord, error)

	// ListByConcert returns all unexpired locks for one concert.
	ListByConcert(ctx context.Context, concertID string) ([]LockRecord, error)

	// ReapExpired removes every lock past its expiry and returns the
	// reclaimed records so the caller can announce the freed seats.
	ReapExpired(ctx context.Context, now time.Time) ([]LockRecord, error)

	// Stats counts active locks by operation and distinct holders.
	Stats(ctx context.Context) (SystemStats, error)
}

// MemoryStore is the single-instance Store. All operations take one mutex;
// lock traffic is small writes so contention is not a concern at this scale.
type MemoryStore struct {
	mu        sync.Mutex
	locks     map[string]*LockRecord
	byConcert map[string]map[string]struct{}
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:     make(map[string]*LockRecord),
		byConcert: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
}

func (s *MemoryStore) Acquire(ctx context.Context, seat SeatKey, holder string, op Operation, ttl time.Duration) (AcquireOutcome, *LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := seat.String()

	if existing, ok := s.locks[key]; ok && !existing.Expired(now) {
		if existing.Holder != holder {
			conflict := *existing
			return OutcomeConflict, &conflict, nil
		}
		// Same holder: renewal, or upgrade selecting -> processing. A
		// processing lock is never downgraded by a later selecting request.
		if existing.Operation != OperationProcessing {
			existing.Operation = op
		}
		existing.ExpiresAt = now.Add(ttl)
		renewed := *existing
		return OutcomeRenewed, &renewed, nil
	}

	record := &LockRecord{
		Seat:       seat,
		Holder:     holder,
		Operation:  op,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.locks[key] = record
	if s.byConcert[seat.ConcertID] == nil {
		s.byConcert[seat.ConcertID] = make(map[string]struct{})
	}
	s.byConcert[seat.ConcertID][key] = struct{}{}

	granted := *record
	return OutcomeGranted, &granted, nil
}

func (s *MemoryStore) Release(ctx context.Context, seat SeatKey, holder string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seat.String()
	existing, ok := s.locks[key]
	if !ok || existing.Holder != holder {
		return false, nil
	}
	s.remove(key, seat.ConcertID)
	return true, nil
}

func (s *MemoryStore) Renew(ctx context.Context, seat SeatKey, holder string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.locks[seat.String()]
	if !ok || existing.Holder != holder || existing.Expired(now) {
		return false, nil
	}
	existing.ExpiresAt = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Get(ctx context.Context, seat SeatKey) (*LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locks[seat.String()]
	if !ok {
		return nil, nil
	}
	record := *existing
	return &record, nil
}

func (s *MemoryStore) ListByConcert(ctx context.Context, concertID string) ([]LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var records []LockRecord
	for key := range s.byConcert[concertID] {
		if record, ok := s.locks[key]; ok && !record.Expired(now) {
			records = append(records, *record)
		}
	}
	return records, nil
}

func (s *MemoryStore) ReapExpired(ctx context.Context, now time.Time) ([]LockRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reclaimed []LockRecord
	for key, record := range s.locks {
		if record.Expired(now) {
			reclaimed = append(reclaimed, *record)
			s.remove(key, record.Seat.ConcertID)
		}
	}
	return reclaimed, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (SystemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stats := SystemStats{}
	holders := make(map[string]struct{})
	for _, record := range s.locks {
		if record.Expired(now) {
			continue
		}
		switch record.Operation {
		case OperationSelecting:
			stats.ActiveSelectingLocks++
		case OperationProcessing:
			stats.ActiveProcessingLocks++
		}
		stats.TotalActiveLocks++
		holders[record.Holder] = struct{}{}
	}
	stats.ActiveHolders = len(holders)
	return stats, nil
}

// remove assumes the mutex is held.
func (s *MemoryStore) remove(key, concertID string) {
	delete(s.locks, key)
	if seats, ok := s.byConcert[concertID]; ok {
		delete(seats, key)
		if len(seats) == 0 {
			delete(s.byConcert, concertID)
		}
	}
}
