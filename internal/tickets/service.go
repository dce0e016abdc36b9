package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"mintix/internal/concerts"
	"mintix/internal/locking"
	"mintix/internal/notifications"
	"mintix/internal/shared/constants"
	"mintix/pkg/cache"
	"mintix/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrConcertNotApproved = errors.New("concert is not open for minting")
	ErrSeatOutOfRange     = errors.New("seat number is outside the section")
	ErrPaymentInvalid     = errors.New("payment verification failed")
	ErrNotListed          = errors.New("ticket is not listed for sale")
	ErrAlreadyListed      = errors.New("ticket is already listed")
	ErrNotOwner           = errors.New("caller does not own this ticket")
	ErrBuyOwnTicket       = errors.New("cannot buy your own ticket")
)

// SeatConflictError reports that the requested seat is held by someone else.
// Controllers render it as a 409 with the conflict payload the seat map
// understands.
type SeatConflictError struct {
	Reason       string
	ProcessingBy string
	Operation    locking.Operation
}

func (e *SeatConflictError) Error() string {
	return "seat conflict: " + e.Reason
}

// SeatLocker is the slice of the lock coordinator the mint pipeline needs.
type SeatLocker interface {
	Acquire(ctx context.Context, seat locking.SeatKey, holder string, op locking.Operation) (*locking.AcquireResult, error)
	Release(ctx context.Context, seat locking.SeatKey, holder string, final locking.FinalState) bool
}

// PaymentVerifier checks a payment transaction on chain.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, signature, payer, recipient string, lamports uint64) error
}

type Service interface {
	MintTicket(ctx context.Context, wallet string, req MintRequest) (*TicketResponse, error)
	MintedSeats(ctx context.Context, concertID uuid.UUID) (*MintedSeatsResponse, error)
	MyTickets(ctx context.Context, wallet string) ([]TicketResponse, error)
	GetTicket(ctx context.Context, ticketID uuid.UUID) (*TicketResponse, error)
	VerifyTicket(ctx context.Context, ticketID uuid.UUID) (*VerifyResponse, error)

	ListTicket(ctx context.Context, wallet string, ticketID uuid.UUID, priceLamports uint64) (*TicketResponse, error)
	UnlistTicket(ctx context.Context, wallet string, ticketID uuid.UUID) (*TicketResponse, error)
	BuyTicket(ctx context.Context, buyer string, ticketID uuid.UUID, txSignature string) (*TicketResponse, error)
	MarketListings(ctx context.Context, query MarketQuery) (*PaginatedListings, error)
	MarketStats(ctx context.Context) (*MarketplaceStats, error)
}

type service struct {
	repo           Repository
	concertService concerts.Service
	locks          SeatLocker
	verifier       PaymentVerifier
	producer       notifications.Producer
	cacheService   cache.Service
	treasuryWallet string
	logger         *logger.Logger
}

func NewService(
	repo Repository,
	concertService concerts.Service,
	locks SeatLocker,
	verifier PaymentVerifier,
	producer notifications.Producer,
	cacheService cache.Service,
	treasuryWallet string,
) Service {
	return &service{
		repo:           repo,
		concertService: concertService,
		locks:          locks,
		verifier:       verifier,
		producer:       producer,
		cacheService:   cacheService,
		treasuryWallet: treasuryWallet,
		logger:         logger.GetDefault(),
	}
}

// MintTicket runs the full mint pipeline: validate the seat, take a
// processing lock, verify the payment on chain, persist the ticket, then
// release the lock as sold. Any failure after the lock is taken releases the
// seat back to available.
func (s *service) MintTicket(ctx context.Context, wallet string, req MintRequest) (*TicketResponse, error) {
	concertID, err := uuid.Parse(req.ConcertID)
	if err != nil {
		return nil, concerts.ErrConcertNotFound
	}

	approved, err := s.concertService.IsApproved(ctx, concertID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, ErrConcertNotApproved
	}

	section, err := s.concertService.GetSection(ctx, concertID, req.SectionName)
	if err != nil {
		return nil, err
	}
	if err := validateSeatNumber(req.SeatNumber, section.TotalSeats); err != nil {
		return nil, err
	}

	seat := locking.SeatKey{
		ConcertID:   req.ConcertID,
		SectionName: req.SectionName,
		SeatNumber:  req.SeatNumber,
	}

	result, err := s.locks.Acquire(ctx, seat, wallet, locking.OperationProcessing)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		s.logger.LogSeatConflict(ctx, seat.String(), result.Reason)
		return nil, &SeatConflictError{
			Reason:       result.Reason,
			ProcessingBy: result.ProcessingBy,
			Operation:    result.Operation,
		}
	}

	sold := false
	defer func() {
		if sold {
			return
		}
		// The request context may already be cancelled; the seat must be
		// freed regardless.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.locks.Release(releaseCtx, seat, wallet, locking.FinalStateAvailable)
	}()

	if err := s.verifier.VerifyPayment(ctx, req.TxSignature, wallet, s.treasuryWallet, section.PriceLamports); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInvalid, err)
	}

	ticket := &Ticket{
		ConcertID:     concertID,
		SectionName:   req.SectionName,
		SeatNumber:    req.SeatNumber,
		OwnerWallet:   wallet,
		PriceLamports: section.PriceLamports,
		TxSignature:   req.TxSignature,
		MintedAt:      time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, err
	}

	sold = true
	s.locks.Release(ctx, seat, wallet, locking.FinalStateSold)

	s.invalidateMintedSeats(ctx, req.ConcertID)
	s.publishEvent(ctx, notifications.TicketEventMinted, ticket)
	s.logger.LogTicketMinted(ctx, ticket.ID.String(), req.ConcertID, seat.String(), wallet)

	resp := ticket.ToResponse()
	return &resp, nil
}

func (s *service) MintedSeats(ctx context.Context, concertID uuid.UUID) (*MintedSeatsResponse, error) {
	var seats []string
	key := constants.BuildMintedSeatsKey(concertID.String())

	err := s.cacheService.GetOrSet(ctx, key, constants.TTL_MINTED_SEATS, func() (interface{}, error) {
		return s.repo.MintedSeats(ctx, concertID)
	}, &seats)
	if err != nil {
		return nil, err
	}

	return &MintedSeatsResponse{
		ConcertID:   concertID.String(),
		MintedSeats: seats,
		Count:       len(seats),
	}, nil
}

func (s *service) MyTickets(ctx context.Context, wallet string) ([]TicketResponse, error) {
	tickets, err := s.repo.GetByOwner(ctx, wallet)
	if err != nil {
		return nil, err
	}

	responses := make([]TicketResponse, len(tickets))
	for i := range tickets {
		responses[i] = tickets[i].ToResponse()
	}
	return responses, nil
}

func (s *service) GetTicket(ctx context.Context, ticketID uuid.UUID) (*TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	resp := ticket.ToResponse()
	return &resp, nil
}

func (s *service) VerifyTicket(ctx context.Context, ticketID uuid.UUID) (*VerifyResponse, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, ErrTicketNotFound) {
			return &VerifyResponse{Valid: false}, nil
		}
		return nil, err
	}

	return &VerifyResponse{
		Valid:       true,
		TicketID:    ticket.ID.String(),
		ConcertID:   ticket.ConcertID.String(),
		SectionName: ticket.SectionName,
		SeatNumber:  ticket.SeatNumber,
		OwnerWallet: ticket.OwnerWallet,
		MintedAt:    ticket.MintedAt,
	}, nil
}

func (s *service) ListTicket(ctx context.Context, wallet string, ticketID uuid.UUID, priceLamports uint64) (*TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerWallet != wallet {
		return nil, ErrNotOwner
	}
	if ticket.IsListed {
		return nil, ErrAlreadyListed
	}

	updated, err := s.repo.SetListing(ctx, ticketID, wallet, true, priceLamports)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrAlreadyListed
	}

	s.invalidateMarket(ctx)

	ticket.IsListed = true
	ticket.ListingPriceLamports = priceLamports
	s.publishEvent(ctx, notifications.TicketEventListed, ticket)

	resp := ticket.ToResponse()
	return &resp, nil
}

func (s *service) UnlistTicket(ctx context.Context, wallet string, ticketID uuid.UUID) (*TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerWallet != wallet {
		return nil, ErrNotOwner
	}
	if !ticket.IsListed {
		return nil, ErrNotListed
	}

	updated, err := s.repo.SetListing(ctx, ticketID, wallet, false, 0)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrNotListed
	}

	s.invalidateMarket(ctx)

	ticket.IsListed = false
	ticket.ListingPriceLamports = 0
	s.publishEvent(ctx, notifications.TicketEventUnlisted, ticket)

	resp := ticket.ToResponse()
	return &resp, nil
}

// BuyTicket settles a marketplace purchase. The conditional ownership update
// is the serialization point; concurrent buyers of the same listing all fail
// except one.
func (s *service) BuyTicket(ctx context.Context, buyer string, ticketID uuid.UUID, txSignature string) (*TicketResponse, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.IsListed {
		return nil, ErrNotListed
	}
	if ticket.OwnerWallet == buyer {
		return nil, ErrBuyOwnTicket
	}

	seller := ticket.OwnerWallet
	if err := s.verifier.VerifyPayment(ctx, txSignature, buyer, seller, ticket.ListingPriceLamports); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInvalid, err)
	}

	transferred, err := s.repo.TransferOwnership(ctx, ticketID, seller, buyer)
	if err != nil {
		return nil, err
	}
	if !transferred {
		// Someone else bought it between our read and the update.
		return nil, ErrNotListed
	}

	s.invalidateMarket(ctx)

	ticket.OwnerWallet = buyer
	ticket.IsListed = false
	ticket.TxSignature = txSignature
	s.publishEvent(ctx, notifications.TicketEventSold, ticket)

	resp := ticket.ToResponse()
	return &resp, nil
}

func (s *service) MarketListings(ctx context.Context, query MarketQuery) (*PaginatedListings, error) {
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 20
	}

	var result PaginatedListings
	key := constants.BuildMarketListingsKey(query.Page, query.Limit)

	err := s.cacheService.GetOrSet(ctx, key, constants.TTL_MARKET_LISTINGS, func() (interface{}, error) {
		tickets, totalCount, err := s.repo.GetListings(ctx, query)
		if err != nil {
			return nil, err
		}

		listings := make([]TicketResponse, len(tickets))
		for i := range tickets {
			listings[i] = tickets[i].ToResponse()
		}

		return PaginatedListings{
			Listings:   listings,
			TotalCount: totalCount,
			Page:       query.Page,
			Limit:      query.Limit,
			TotalPages: int(math.Ceil(float64(totalCount) / float64(query.Limit))),
		}, nil
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) MarketStats(ctx context.Context) (*MarketplaceStats, error) {
	var stats MarketplaceStats

	err := s.cacheService.GetOrSet(ctx, constants.CACHE_KEY_MARKET_STATS, constants.TTL_MARKET_STATS, func() (interface{}, error) {
		return s.repo.GetStats(ctx)
	}, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *service) invalidateMintedSeats(ctx context.Context, concertID string) {
	if err := s.cacheService.Delete(ctx, constants.BuildMintedSeatsKey(concertID)); err != nil {
		s.logger.Warn("failed to invalidate minted seats cache", slog.Any("error", err))
	}
}

func (s *service) invalidateMarket(ctx context.Context) {
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_MARKET_ALL); err != nil {
		s.logger.Warn("failed to invalidate market cache", slog.Any("error", err))
	}
}

func (s *service) publishEvent(ctx context.Context, eventType notifications.TicketEventType, ticket *Ticket) {
	event := &notifications.TicketEvent{
		Type:          eventType,
		TicketID:      ticket.ID.String(),
		ConcertID:     ticket.ConcertID.String(),
		SectionName:   ticket.SectionName,
		SeatNumber:    ticket.SeatNumber,
		OwnerWallet:   ticket.OwnerWallet,
		PriceLamports: ticket.PriceLamports,
		TxSignature:   ticket.TxSignature,
	}
	if err := s.producer.PublishTicketEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish ticket event",
			slog.String("type", string(eventType)),
			slog.Any("error", err),
		)
	}
}

// validateSeatNumber accepts numeric seat numbers within the section range.
func validateSeatNumber(seatNumber string, totalSeats int) error {
	n, err := strconv.Atoi(seatNumber)
	if err != nil || n < 1 || n > totalSeats {
		return ErrSeatOutOfRange
	}
	return nil
}
