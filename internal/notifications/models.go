package notifications

import (
	"encoding/json"
	"time"
)

type TicketEventType string

const (
	TicketEventMinted TicketEventType = "ticket.minted"
	TicketEventListed TicketEventType = "ticket.listed"
	TicketEventUnlisted TicketEventType = "ticket.unlisted"
	TicketEventSold   TicketEventType = "ticket.sold"
)

// TicketEvent is the message published to the ticket-events topic whenever a
// ticket changes hands or listing state. Keyed by concert so downstream
// consumers see per-concert ordering.
type TicketEvent struct {
	Type          TicketEventType `json:"type"`
	TicketID      string          `json:"ticket_id"`
	ConcertID     string          `json:"concert_id"`
	SectionName   string          `json:"section_name"`
	SeatNumber    string          `json:"seat_number"`
	OwnerWallet   string          `json:"owner_wallet"`
	PriceLamports uint64          `json:"price_lamports,omitempty"`
	TxSignature   string          `json:"tx_signature,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (e *TicketEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetPartitionKey routes all events of one concert to the same partition.
func (e *TicketEvent) GetPartitionKey() string {
	return e.ConcertID
}
