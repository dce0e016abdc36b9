package concerts

import (
	"context"
	"errors"
	"math"
	"time"

	"mintix/internal/shared/constants"
	"mintix/pkg/cache"
	"mintix/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNotReviewable  = errors.New("concert is not awaiting review")
	ErrConcertInPast  = errors.New("concert date must be in the future")
	ErrDuplicateNames = errors.New("section names must be unique")
	ErrNotDeletable   = errors.New("approved concerts cannot be deleted")
)

type Service interface {
	CreateConcert(ctx context.Context, organizerID uuid.UUID, req CreateConcertRequest) (*ConcertResponse, error)
	GetConcert(ctx context.Context, id uuid.UUID) (*ConcertResponse, error)
	ListApproved(ctx context.Context, page, limit int) (*PaginatedConcerts, error)
	ListForAdmin(ctx context.Context, query ConcertListQuery) (*PaginatedConcerts, error)
	Approve(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error)
	Reject(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error)
	RequestInfo(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error)
	DeleteConcert(ctx context.Context, id uuid.UUID) error

	// GetSection resolves a section by concert and name for price and
	// seat-range validation during minting.
	GetSection(ctx context.Context, concertID uuid.UUID, name string) (*Section, error)
	IsApproved(ctx context.Context, concertID uuid.UUID) (bool, error)
}

type service struct {
	repo         Repository
	cacheService cache.Service
	logger       *logger.Logger
}

func NewService(repo Repository, cacheService cache.Service) Service {
	return &service{
		repo:         repo,
		cacheService: cacheService,
		logger:       logger.GetDefault(),
	}
}

func (s *service) CreateConcert(ctx context.Context, organizerID uuid.UUID, req CreateConcertRequest) (*ConcertResponse, error) {
	if req.Date.Before(time.Now()) {
		return nil, ErrConcertInPast
	}

	seen := make(map[string]bool, len(req.Sections))
	sections := make([]Section, len(req.Sections))
	for i, sec := range req.Sections {
		if seen[sec.Name] {
			return nil, ErrDuplicateNames
		}
		seen[sec.Name] = true
		sections[i] = Section{
			Name:          sec.Name,
			PriceLamports: sec.PriceLamports,
			TotalSeats:    sec.TotalSeats,
		}
	}

	concert := &Concert{
		Title:       req.Title,
		Artist:      req.Artist,
		Description: req.Description,
		VenueName:   req.VenueName,
		Date:        req.Date,
		ImageURL:    req.ImageURL,
		Status:      StatusPending,
		Sections:    sections,
		CreatedBy:   organizerID,
	}

	if err := s.repo.Create(concert); err != nil {
		return nil, err
	}

	resp := concert.ToResponse()
	return &resp, nil
}

func (s *service) GetConcert(ctx context.Context, id uuid.UUID) (*ConcertResponse, error) {
	var resp ConcertResponse
	key := constants.BuildConcertDetailKey(id.String())

	err := s.cacheService.GetOrSet(ctx, key, constants.TTL_CONCERT_DETAIL, func() (interface{}, error) {
		concert, err := s.repo.GetByID(id)
		if err != nil {
			return nil, err
		}
		return concert.ToResponse(), nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *service) ListApproved(ctx context.Context, page, limit int) (*PaginatedConcerts, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 10
	}

	var result PaginatedConcerts
	key := constants.BuildConcertListKey(page, limit)

	err := s.cacheService.GetOrSet(ctx, key, constants.TTL_CONCERTS_APPROVED, func() (interface{}, error) {
		return s.list(ConcertListQuery{Page: page, Limit: limit, Status: string(StatusApproved)})
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) ListForAdmin(ctx context.Context, query ConcertListQuery) (*PaginatedConcerts, error) {
	return s.list(query)
}

func (s *service) list(query ConcertListQuery) (*PaginatedConcerts, error) {
	concerts, totalCount, err := s.repo.GetAll(query)
	if err != nil {
		return nil, err
	}

	responses := make([]ConcertResponse, len(concerts))
	for i := range concerts {
		responses[i] = concerts[i].ToResponse()
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(query.Limit)))

	return &PaginatedConcerts{
		Concerts:   responses,
		TotalCount: totalCount,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error) {
	return s.review(ctx, id, StatusApproved, note)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error) {
	return s.review(ctx, id, StatusRejected, note)
}

func (s *service) RequestInfo(ctx context.Context, id uuid.UUID, note string) (*ConcertResponse, error) {
	return s.review(ctx, id, StatusInfoRequested, note)
}

func (s *service) review(ctx context.Context, id uuid.UUID, status Status, note string) (*ConcertResponse, error) {
	current, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusRejected || current.Status == StatusApproved {
		return nil, ErrNotReviewable
	}

	concert, err := s.repo.UpdateStatus(id, status, note)
	if err != nil {
		return nil, err
	}

	s.logger.LogConcertStatusChange(ctx, id.String(), string(current.Status), string(status))
	s.invalidateConcertCache(ctx)

	resp := concert.ToResponse()
	return &resp, nil
}

// DeleteConcert removes a concert that never went on sale. Approved concerts
// may have minted tickets referencing their seats, so they stay.
func (s *service) DeleteConcert(ctx context.Context, id uuid.UUID) error {
	current, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if current.Status == StatusApproved {
		return ErrNotDeletable
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}

	s.invalidateConcertCache(ctx)
	return nil
}

func (s *service) GetSection(ctx context.Context, concertID uuid.UUID, name string) (*Section, error) {
	return s.repo.GetSection(concertID, name)
}

func (s *service) IsApproved(ctx context.Context, concertID uuid.UUID) (bool, error) {
	concert, err := s.repo.GetByID(concertID)
	if err != nil {
		return false, err
	}
	return concert.Status == StatusApproved, nil
}

func (s *service) invalidateConcertCache(ctx context.Context) {
	if err := s.cacheService.DeletePattern(ctx, constants.PATTERN_INVALIDATE_CONCERTS_ALL); err != nil {
		s.logger.Warn("failed to invalidate concert cache", "error", err)
	}
}
