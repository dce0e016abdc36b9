package concerts

import (
	"time"

	"github.com/google/uuid"
)

type Concert struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Title       string    `json:"title" gorm:"not null;size:255"`
	Artist      string    `json:"artist" gorm:"not null;size:255"`
	Description string    `json:"description" gorm:"type:text"`
	VenueName   string    `json:"venue_name" gorm:"not null;size:255"`
	Date        time.Time `json:"date" gorm:"not null"`
	ImageURL    string    `json:"image_url" gorm:"size:500"`
	Status      Status    `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ReviewNote  string    `json:"review_note,omitempty" gorm:"type:text"`

	Sections []Section `json:"sections" gorm:"constraint:OnDelete:CASCADE"`

	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Section is a named block of seats with a single price. Seats inside a
// section are addressed by number, 1..TotalSeats; they have no DB rows of
// their own. Ownership lives in the tickets table.
type Section struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ConcertID     uuid.UUID `json:"concert_id" gorm:"type:uuid;not null;index"`
	Name          string    `json:"name" gorm:"not null;size:100"`
	PriceLamports uint64    `json:"price_lamports" gorm:"not null"`
	TotalSeats    int       `json:"total_seats" gorm:"not null;check:total_seats > 0"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type CreateSectionRequest struct {
	Name          string `json:"name" binding:"required,min=1,max=100"`
	PriceLamports uint64 `json:"price_lamports" binding:"required,min=1"`
	TotalSeats    int    `json:"total_seats" binding:"required,min=1,max=10000"`
}

type CreateConcertRequest struct {
	Title       string                 `json:"title" binding:"required,min=3,max=255"`
	Artist      string                 `json:"artist" binding:"required,min=1,max=255"`
	Description string                 `json:"description" binding:"max=2000"`
	VenueName   string                 `json:"venue_name" binding:"required,min=3,max=255"`
	Date        time.Time              `json:"date" binding:"required"`
	ImageURL    string                 `json:"image_url" binding:"omitempty,url"`
	Sections    []CreateSectionRequest `json:"sections" binding:"required,min=1,dive"`
}

type ReviewRequest struct {
	Note string `json:"note" binding:"max=2000"`
}

type ConcertListQuery struct {
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected info_requested"`
}

type SectionResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceLamports uint64 `json:"price_lamports"`
	TotalSeats    int    `json:"total_seats"`
}

type ConcertResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Artist      string            `json:"artist"`
	Description string            `json:"description"`
	VenueName   string            `json:"venue_name"`
	Date        time.Time         `json:"date"`
	ImageURL    string            `json:"image_url"`
	Status      Status            `json:"status"`
	ReviewNote  string            `json:"review_note,omitempty"`
	Sections    []SectionResponse `json:"sections"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type PaginatedConcerts struct {
	Concerts   []ConcertResponse `json:"concerts"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

func (c *Concert) ToResponse() ConcertResponse {
	sections := make([]SectionResponse, len(c.Sections))
	for i, s := range c.Sections {
		sections[i] = SectionResponse{
			ID:            s.ID.String(),
			Name:          s.Name,
			PriceLamports: s.PriceLamports,
			TotalSeats:    s.TotalSeats,
		}
	}

	return ConcertResponse{
		ID:          c.ID.String(),
		Title:       c.Title,
		Artist:      c.Artist,
		Description: c.Description,
		VenueName:   c.VenueName,
		Date:        c.Date,
		ImageURL:    c.ImageURL,
		Status:      c.Status,
		ReviewNote:  c.ReviewNote,
		Sections:    sections,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// TableName specifies the table name for GORM
func (Concert) TableName() string {
	return "concerts"
}

func (Section) TableName() string {
	return "concert_sections"
}
