package tickets

import (
	"context"
	"errors"

	"mintix/internal/locking"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrSeatTaken surfaces the unique-index violation on the seat columns.
	ErrSeatTaken = errors.New("seat already minted")
)

type Repository interface {
	Create(ctx context.Context, ticket *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	GetByOwner(ctx context.Context, wallet string) ([]Ticket, error)
	MintedSeats(ctx context.Context, concertID uuid.UUID) ([]string, error)

	// Marketplace
	SetListing(ctx context.Context, ticketID uuid.UUID, owner string, listed bool, price uint64) (bool, error)
	TransferOwnership(ctx context.Context, ticketID uuid.UUID, seller, buyer string) (bool, error)
	GetListings(ctx context.Context, query MarketQuery) ([]Ticket, int64, error)
	GetStats(ctx context.Context) (*MarketplaceStats, error)

	// IsSeatMinted implements the lock coordinator's minted check.
	IsSeatMinted(ctx context.Context, seat locking.SeatKey) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, ticket *Ticket) error {
	err := r.db.WithContext(ctx).Create(ticket).Error
	if err != nil {
		// TranslateError maps the Postgres unique violation here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrSeatTaken
		}
		return err
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) GetByOwner(ctx context.Context, wallet string) ([]Ticket, error) {
	var tickets []Ticket
	err := r.db.WithContext(ctx).
		Where("owner_wallet = ?", wallet).
		Order("minted_at DESC").
		Find(&tickets).Error
	return tickets, err
}

func (r *repository) MintedSeats(ctx context.Context, concertID uuid.UUID) ([]string, error) {
	type row struct {
		SectionName string
		SeatNumber  string
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Select("section_name", "seat_number").
		Where("concert_id = ?", concertID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	seats := make([]string, len(rows))
	for i, row := range rows {
		seats[i] = row.SectionName + ":" + row.SeatNumber
	}
	return seats, nil
}

// SetListing flips listing state with an owner-checked conditional update.
// Returns false when the ticket is not owned by the caller or already in the
// requested state.
func (r *repository) SetListing(ctx context.Context, ticketID uuid.UUID, owner string, listed bool, price uint64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND owner_wallet = ? AND is_listed = ?", ticketID, owner, !listed).
		Updates(map[string]interface{}{
			"is_listed":              listed,
			"listing_price_lamports": price,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TransferOwnership moves a listed ticket from seller to buyer. The WHERE
// clause serializes concurrent buys: only one update can match the listed
// row, every other buyer sees zero rows affected.
func (r *repository) TransferOwnership(ctx context.Context, ticketID uuid.UUID, seller, buyer string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND owner_wallet = ? AND is_listed = ?", ticketID, seller, true).
		Updates(map[string]interface{}{
			"owner_wallet":           buyer,
			"is_listed":              false,
			"listing_price_lamports": 0,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) GetListings(ctx context.Context, query MarketQuery) ([]Ticket, int64, error) {
	var tickets []Ticket
	var totalCount int64

	db := r.db.WithContext(ctx).Model(&Ticket{}).Where("is_listed = ?", true)

	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	offset := (query.Page - 1) * query.Limit

	err := db.Order("listing_price_lamports ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&tickets).Error

	return tickets, totalCount, err
}

func (r *repository) GetStats(ctx context.Context) (*MarketplaceStats, error) {
	var stats MarketplaceStats

	if err := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("is_listed = ?", true).
		Count(&stats.ActiveListings).Error; err != nil {
		return nil, err
	}

	type aggregate struct {
		TotalSales  int64
		TotalVolume uint64
		HighestSale uint64
	}
	var agg aggregate
	if err := r.db.WithContext(ctx).Model(&Ticket{}).
		Select("COUNT(*) as total_sales, COALESCE(SUM(price_lamports), 0) as total_volume, COALESCE(MAX(price_lamports), 0) as highest_sale").
		Scan(&agg).Error; err != nil {
		return nil, err
	}
	stats.TotalSales = agg.TotalSales
	stats.TotalVolume = agg.TotalVolume
	stats.HighestSalePrice = agg.HighestSale

	type floor struct {
		FloorPrice uint64
	}
	var f floor
	if err := r.db.WithContext(ctx).Model(&Ticket{}).
		Select("COALESCE(MIN(listing_price_lamports), 0) as floor_price").
		Where("is_listed = ?", true).
		Scan(&f).Error; err != nil {
		return nil, err
	}
	stats.FloorPrice = f.FloorPrice

	return &stats, nil
}

func (r *repository) IsSeatMinted(ctx context.Context, seat locking.SeatKey) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Ticket{}).
		Where("concert_id = ? AND section_name = ? AND seat_number = ?",
			seat.ConcertID, seat.SectionName, seat.SeatNumber).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
