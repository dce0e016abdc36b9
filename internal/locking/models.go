package locking

import (
	"strings"
	"time"
)

// Operation describes why a seat is being held.
type Operation string

const (
	// OperationSelecting is a soft hold while a buyer is still choosing seats.
	OperationSelecting Operation = "selecting"
	// OperationProcessing is a hard hold while a mint transaction is in flight.
	OperationProcessing Operation = "processing"
)

func (o Operation) Valid() bool {
	return o == OperationSelecting || o == OperationProcessing
}

// FinalState is the seat state announced when a lock is released.
type FinalState string

const (
	FinalStateAvailable FinalState = "available"
	FinalStateSold      FinalState = "sold"
)

// SeatState is what the realtime feed reports for a seat.
type SeatState string

const (
	SeatStateAvailable SeatState = "available"
	SeatStateLocked    SeatState = "locked"
	SeatStateSold      SeatState = "sold"
)

// Failure reasons returned to API clients on lock contention.
const (
	ReasonAlreadyMinted      = "already_minted"
	ReasonSeatLocked         = "seat_locked"
	ReasonProcessingConflict = "processing_conflict"
)

// SeatKey uniquely identifies one reservable seat of a concert.
type SeatKey struct {
	ConcertID   string `json:"concert_id"`
	SectionName string `json:"section_name"`
	SeatNumber  string `json:"seat_number"`
}

func (k SeatKey) Valid() bool {
	return k.ConcertID != "" && k.SectionName != "" && k.SeatNumber != ""
}

// String renders the composite key used by both lock stores.
func (k SeatKey) String() string {
	return k.ConcertID + ":" + k.SectionName + ":" + k.SeatNumber
}

// ParseSeatKey is the inverse of SeatKey.String.
func ParseSeatKey(s string) (SeatKey, bool) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return SeatKey{}, false
	}
	key := SeatKey{ConcertID: parts[0], SectionName: parts[1], SeatNumber: parts[2]}
	return key, key.Valid()
}

// LockRecord is the state held for one active seat lock.
type LockRecord struct {
	Seat       SeatKey   `json:"seat"`
	Holder     string    `json:"holder"`
	Operation  Operation `json:"operation"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (r *LockRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// AcquireResult is the coordinator's answer to a lock request.
type AcquireResult struct {
	Success      bool      `json:"success"`
	Reason       string    `json:"reason,omitempty"`
	ProcessingBy string    `json:"processing_by,omitempty"`
	Operation    Operation `json:"operation,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// SystemStats summarizes active locks for the system status endpoints.
type SystemStats struct {
	ActiveSelectingLocks  int `json:"active_selecting_locks"`
	ActiveProcessingLocks int `json:"active_processing_locks"`
	TotalActiveLocks      int `json:"total_active_locks"`
	ActiveHolders         int `json:"active_holders"`
}
