package tickets

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is the authoritative record of a sold seat. The composite unique
// index on (concert_id, section_name, seat_number) is the last line of
// defense against a double mint slipping past the lock layer.
type Ticket struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ConcertID   uuid.UUID `json:"concert_id" gorm:"type:uuid;not null;uniqueIndex:idx_concert_seat"`
	SectionName string    `json:"section_name" gorm:"not null;size:100;uniqueIndex:idx_concert_seat"`
	SeatNumber  string    `json:"seat_number" gorm:"not null;size:20;uniqueIndex:idx_concert_seat"`

	OwnerWallet   string `json:"owner_wallet" gorm:"not null;size:64;index"`
	PriceLamports uint64 `json:"price_lamports" gorm:"not null"`
	TxSignature   string `json:"tx_signature" gorm:"not null;size:128;uniqueIndex"`

	IsListed             bool   `json:"is_listed" gorm:"default:false;index"`
	ListingPriceLamports uint64 `json:"listing_price_lamports" gorm:"default:0"`

	MintedAt  time.Time `json:"minted_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Ticket) TableName() string {
	return "tickets"
}

type MintRequest struct {
	ConcertID   string `json:"concert_id" binding:"required,uuid"`
	SectionName string `json:"section_name" binding:"required,min=1,max=100"`
	SeatNumber  string `json:"seat_number" binding:"required,min=1,max=20"`
	TxSignature string `json:"tx_signature" binding:"required,min=32,max=128"`
}

type ListTicketRequest struct {
	PriceLamports uint64 `json:"price_lamports" binding:"required,min=1"`
}

type BuyTicketRequest struct {
	TxSignature string `json:"tx_signature" binding:"required,min=32,max=128"`
}

type MarketQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type TicketResponse struct {
	ID                   string    `json:"id"`
	ConcertID            string    `json:"concert_id"`
	SectionName          string    `json:"section_name"`
	SeatNumber           string    `json:"seat_number"`
	OwnerWallet          string    `json:"owner_wallet"`
	PriceLamports        uint64    `json:"price_lamports"`
	TxSignature          string    `json:"tx_signature"`
	IsListed             bool      `json:"is_listed"`
	ListingPriceLamports uint64    `json:"listing_price_lamports,omitempty"`
	MintedAt             time.Time `json:"minted_at"`
}

// MintedSeatsResponse lists sold seats of a concert as "section:number"
// strings, the format the seat map consumes directly.
type MintedSeatsResponse struct {
	ConcertID   string   `json:"concert_id"`
	MintedSeats []string `json:"minted_seats"`
	Count       int      `json:"count"`
}

type PaginatedListings struct {
	Listings   []TicketResponse `json:"listings"`
	TotalCount int64            `json:"total_count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	TotalPages int              `json:"total_pages"`
}

type MarketplaceStats struct {
	ActiveListings   int64  `json:"active_listings"`
	TotalSales       int64  `json:"total_sales"`
	TotalVolume      uint64 `json:"total_volume_lamports"`
	FloorPrice       uint64 `json:"floor_price_lamports"`
	HighestSalePrice uint64 `json:"highest_sale_price_lamports"`
}

type VerifyResponse struct {
	Valid       bool      `json:"valid"`
	TicketID    string    `json:"ticket_id,omitempty"`
	ConcertID   string    `json:"concert_id,omitempty"`
	SectionName string    `json:"section_name,omitempty"`
	SeatNumber  string    `json:"seat_number,omitempty"`
	OwnerWallet string    `json:"owner_wallet,omitempty"`
	MintedAt    time.Time `json:"minted_at,omitempty"`
}

func (t *Ticket) ToResponse() TicketResponse {
	return TicketResponse{
		ID:                   t.ID.String(),
		ConcertID:            t.ConcertID.String(),
		SectionName:          t.SectionName,
		SeatNumber:           t.SeatNumber,
		OwnerWallet:          t.OwnerWallet,
		PriceLamports:        t.PriceLamports,
		TxSignature:          t.TxSignature,
		IsListed:             t.IsListed,
		ListingPriceLamports: t.ListingPriceLamports,
		MintedAt:             t.MintedAt,
	}
}
