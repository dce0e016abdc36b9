package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mintix/pkg/logger"
)

var (
	ErrInvalidSeat      = errors.New("invalid seat identity")
	ErrInvalidOperation = errors.New("invalid lock operation")
	ErrMissingHolder    = errors.New("holder is required")

	// ErrStoreUnavailable means the lock backend could not answer. The
	// coordinator fails closed on it: no lock is ever granted on doubt.
	ErrStoreUnavailable = errors.New("lock store unavailable")
)

// MintedChecker answers whether a seat already has a minted ticket. Backed by
// the ticket repository; a seat that is minted can never be locked again.
type MintedChecker interface {
	IsSeatMinted(ctx context.Context, seat SeatKey) (bool, error)
}

// Broadcaster pushes seat state transitions to viewers of a concert's seat
// map. Delivery is best-effort; correctness never depends on it.
type Broadcaster interface {
	BroadcastSeatUpdate(concertID string, seat SeatKey, state SeatState)
}

// NoopBroadcaster satisfies Broadcaster when no realtime transport is wired.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastSeatUpdate(string, SeatKey, SeatState) {}

// Config carries the coordinator's TTL policy.
type Config struct {
	SelectingTTL  time.Duration
	ProcessingTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		SelectingTTL:  2 * time.Minute,
		ProcessingTTL: 2 * time.Minute,
	}
}

// Coordinator enforces the seat reservation rules: at most one active lock per
// seat, minted seats are never lockable, and only the holder may release or
// renew. It is the sole serialization point for seat state; atomicity of the
// check-then-act sequence is delegated to the Store implementations.
type Coordinator struct {
	store       Store
	minted      MintedChecker
	broadcaster Broadcaster
	config      Config
	logger      *logger.Logger
}

func NewCoordinator(store Store, minted MintedChecker, broadcaster Broadcaster, config Config) *Coordinator {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if config.SelectingTTL <= 0 {
		config.SelectingTTL = DefaultConfig().SelectingTTL
	}
	if config.ProcessingTTL <= 0 {
		config.ProcessingTTL = DefaultConfig().ProcessingTTL
	}
	return &Coordinator{
		store:       store,
		minted:      minted,
		broadcaster: broadcaster,
		config:      config,
		logger:      logger.GetDefault(),
	}
}

// Acquire grants, renews, or rejects a seat lock for the holder. On success
// the seat transition to "locked" is broadcast; on failure nothing mutates.
func (c *Coordinator) Acquire(ctx context.Context, seat SeatKey, holder string, op Operation) (*AcquireResult, error) {
	if !seat.Valid() {
		return nil, ErrInvalidSeat
	}
	if holder == "" {
		return nil, ErrMissingHolder
	}
	if !op.Valid() {
		return nil, ErrInvalidOperation
	}

	// Authoritative check first: a sold seat is gone for good, no matter
	// what the lock table says.
	minted, err := c.minted.IsSeatMinted(ctx, seat)
	if err != nil {
		return nil, fmt.Errorf("%w: minted check failed: %v", ErrStoreUnavailable, err)
	}
	if minted {
		return &AcquireResult{Success: false, Reason: ReasonAlreadyMinted}, nil
	}

	outcome, record, err := c.store.Acquire(ctx, seat, holder, op, c.ttlFor(op))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if outcome == OutcomeConflict {
		reason := ReasonSeatLocked
		if record != nil && record.Operation == OperationProcessing {
			reason = ReasonProcessingConflict
		}
		result := &AcquireResult{
			Success: false,
			Reason:  reason,
			// Never leak the other holder's identity.
			ProcessingBy: "other_user",
		}
		if record != nil {
			result.Operation = record.Operation
		}
		return result, nil
	}

	c.broadcaster.BroadcastSeatUpdate(seat.ConcertID, seat, SeatStateLocked)
	c.logger.Debug("seat lock acquired",
		slog.String("seat", seat.String()),
		slog.String("holder", holder),
		slog.String("operation", string(record.Operation)),
	)

	return &AcquireResult{
		Success:   true,
		Operation: record.Operation,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Release removes the holder's lock and announces the seat's final state.
// A release attempt by a non-holder is logged and ignored; the stale caller
// learns nothing about who owns the seat.
func (c *Coordinator) Release(ctx context.Context, seat SeatKey, holder string, final FinalState) bool {
	released, err := c.store.Release(ctx, seat, holder)
	if err != nil {
		c.logger.Error("seat lock release failed",
			slog.String("seat", seat.String()),
			slog.Any("error", err),
		)
		return false
	}
	if !released {
		c.logger.Warn("stale release attempt ignored",
			slog.String("seat", seat.String()),
			slog.String("caller", holder),
		)
		return false
	}

	state := SeatStateAvailable
	if final == FinalStateSold {
		state = SeatStateSold
	}
	c.broadcaster.BroadcastSeatUpdate(seat.ConcertID, seat, state)
	return true
}

// Renew extends the holder's lock; used as a heartbeat during long mints.
func (c *Coordinator) Renew(ctx context.Context, seat SeatKey, holder string) bool {
	record, err := c.store.Get(ctx, seat)
	if err != nil || record == nil {
		return false
	}
	renewed, err := c.store.Renew(ctx, seat, holder, c.ttlFor(record.Operation))
	if err != nil {
		c.logger.Error("seat lock renew failed",
			slog.String("seat", seat.String()),
			slog.Any("error", err),
		)
		return false
	}
	return renewed
}

// CleanupExpired reclaims every lock past its expiry and announces the freed
// seats. Returns the number of locks reclaimed.
func (c *Coordinator) CleanupExpired(ctx context.Context) (int, error) {
	reclaimed, err := c.store.ReapExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, record := range reclaimed {
		c.broadcaster.BroadcastSeatUpdate(record.Seat.ConcertID, record.Seat, SeatStateAvailable)
	}
	if len(reclaimed) > 0 {
		c.logger.Info("reclaimed expired seat locks", slog.Int("count", len(reclaimed)))
	}
	return len(reclaimed), nil
}

// LocksForConcert lists active locks for admin and debug views.
func (c *Coordinator) LocksForConcert(ctx context.Context, concertID string) ([]LockRecord, error) {
	records, err := c.store.ListByConcert(ctx, concertID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// Stats reports active lock counts for the system status endpoint.
func (c *Coordinator) Stats(ctx context.Context) (SystemStats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return SystemStats{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return stats, nil
}

func (c *Coordinator) ttlFor(op Operation) time.Duration {
	if op == OperationProcessing {
		return c.config.ProcessingTTL
	}
	return c.config.SelectingTTL
}
