package concerts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeConcertRepo struct {
	concerts map[uuid.UUID]*Concert
}

func newFakeConcertRepo() *fakeConcertRepo {
	return &fakeConcertRepo{concerts: make(map[uuid.UUID]*Concert)}
}

func (f *fakeConcertRepo) Create(concert *Concert) error {
	concert.ID = uuid.New()
	for i := range concert.Sections {
		concert.Sections[i].ID = uuid.New()
		concert.Sections[i].ConcertID = concert.ID
	}
	copied := *concert
	f.concerts[concert.ID] = &copied
	return nil
}

func (f *fakeConcertRepo) GetByID(id uuid.UUID) (*Concert, error) {
	concert, ok := f.concerts[id]
	if !ok {
		return nil, ErrConcertNotFound
	}
	copied := *concert
	return &copied, nil
}

func (f *fakeConcertRepo) GetAll(query ConcertListQuery) ([]Concert, int64, error) {
	var out []Concert
	for _, concert := range f.concerts {
		if query.Status != "" && string(concert.Status) != query.Status {
			continue
		}
		out = append(out, *concert)
	}
	return out, int64(len(out)), nil
}

func (f *fakeConcertRepo) UpdateStatus(id uuid.UUID, status Status, note string) (*Concert, error) {
	concert, ok := f.concerts[id]
	if !ok {
		return nil, ErrConcertNotFound
	}
	concert.Status = status
	concert.ReviewNote = note
	copied := *concert
	return &copied, nil
}

func (f *fakeConcertRepo) Delete(id uuid.UUID) error {
	if _, ok := f.concerts[id]; !ok {
		return ErrConcertNotFound
	}
	delete(f.concerts, id)
	return nil
}

func (f *fakeConcertRepo) GetSection(concertID uuid.UUID, name string) (*Section, error) {
	concert, ok := f.concerts[concertID]
	if !ok {
		return nil, ErrConcertNotFound
	}
	for i := range concert.Sections {
		if concert.Sections[i].Name == name {
			section := concert.Sections[i]
			return &section, nil
		}
	}
	return nil, ErrSectionNotFound
}

// passthroughCache always misses and serves fetched values directly.
type passthroughCache struct{}

func (passthroughCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("cache miss")
}
func (passthroughCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (passthroughCache) Delete(ctx context.Context, key string) error      { return nil }
func (passthroughCache) DeletePattern(ctx context.Context, p string) error { return nil }
func (passthroughCache) Exists(ctx context.Context, key string) bool       { return false }
func (passthroughCache) Ping(ctx context.Context) error                    { return nil }
func (passthroughCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetcher func() (interface{}, error), dest interface{}) error {
	value, err := fetcher()
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}

func validCreateRequest() CreateConcertRequest {
	return CreateConcertRequest{
		Title:     "Test Concert",
		Artist:    "Test Artist",
		VenueName: "Test Venue",
		Date:      time.Now().AddDate(0, 1, 0),
		Sections: []CreateSectionRequest{
			{Name: "VIP", PriceLamports: 2_000_000_000, TotalSeats: 50},
			{Name: "A", PriceLamports: 1_000_000_000, TotalSeats: 200},
		},
	}
}

func TestCreateConcertStartsPending(t *testing.T) {
	repo := newFakeConcertRepo()
	svc := NewService(repo, passthroughCache{})

	resp, err := svc.CreateConcert(context.Background(), uuid.New(), validCreateRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if resp.Status != StatusPending {
		t.Fatalf("new concert must start pending, got %q", resp.Status)
	}
	if len(resp.Sections) != 2 {
		t.Fatalf("sections lost: %+v", resp.Sections)
	}
}

func TestCreateConcertValidation(t *testing.T) {
	svc := NewService(newFakeConcertRepo(), passthroughCache{})
	ctx := context.Background()

	past := validCreateRequest()
	past.Date = time.Now().AddDate(0, 0, -1)
	if _, err := svc.CreateConcert(ctx, uuid.New(), past); !errors.Is(err, ErrConcertInPast) {
		t.Fatalf("expected ErrConcertInPast, got %v", err)
	}

	dup := validCreateRequest()
	dup.Sections = append(dup.Sections, CreateSectionRequest{Name: "VIP", PriceLamports: 1, TotalSeats: 1})
	if _, err := svc.CreateConcert(ctx, uuid.New(), dup); !errors.Is(err, ErrDuplicateNames) {
		t.Fatalf("expected ErrDuplicateNames, got %v", err)
	}
}

func TestReviewTransitions(t *testing.T) {
	repo := newFakeConcertRepo()
	svc := NewService(repo, passthroughCache{})
	ctx := context.Background()

	created, err := svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := uuid.MustParse(created.ID)

	// Pending concerts can bounce through info_requested and back.
	resp, err := svc.RequestInfo(ctx, id, "need a venue contract")
	if err != nil {
		t.Fatalf("request info: %v", err)
	}
	if resp.Status != StatusInfoRequested || resp.ReviewNote != "need a venue contract" {
		t.Fatalf("unexpected state: %+v", resp)
	}

	resp, err = svc.Approve(ctx, id, "looks good")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resp.Status != StatusApproved {
		t.Fatalf("unexpected status %q", resp.Status)
	}

	// Approved and rejected are terminal.
	if _, err := svc.Reject(ctx, id, "changed my mind"); !errors.Is(err, ErrNotReviewable) {
		t.Fatalf("expected ErrNotReviewable after approval, got %v", err)
	}

	approved, err := svc.IsApproved(ctx, id)
	if err != nil || !approved {
		t.Fatalf("IsApproved: %v %v", approved, err)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	repo := newFakeConcertRepo()
	svc := NewService(repo, passthroughCache{})
	ctx := context.Background()

	created, _ := svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	id := uuid.MustParse(created.ID)

	if _, err := svc.Reject(ctx, id, "not suitable"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := svc.Approve(ctx, id, ""); !errors.Is(err, ErrNotReviewable) {
		t.Fatalf("expected ErrNotReviewable after rejection, got %v", err)
	}
}

func TestGetSection(t *testing.T) {
	repo := newFakeConcertRepo()
	svc := NewService(repo, passthroughCache{})
	ctx := context.Background()

	created, _ := svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	id := uuid.MustParse(created.ID)

	section, err := svc.GetSection(ctx, id, "VIP")
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	if section.TotalSeats != 50 || section.PriceLamports != 2_000_000_000 {
		t.Fatalf("unexpected section: %+v", section)
	}

	if _, err := svc.GetSection(ctx, id, "Z"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestDeleteConcert(t *testing.T) {
	repo := newFakeConcertRepo()
	svc := NewService(repo, passthroughCache{})
	ctx := context.Background()

	created, _ := svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	id := uuid.MustParse(created.ID)

	if err := svc.DeleteConcert(ctx, id); err != nil {
		t.Fatalf("delete pending concert: %v", err)
	}
	if _, err := svc.GetConcert(ctx, id); !errors.Is(err, ErrConcertNotFound) {
		t.Fatalf("concert still present after delete: %v", err)
	}

	approved, _ := svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	approvedID := uuid.MustParse(approved.ID)
	if _, err := svc.Approve(ctx, approvedID, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.DeleteConcert(ctx, approvedID); !errors.Is(err, ErrNotDeletable) {
		t.Fatalf("expected ErrNotDeletable for approved concert, got %v", err)
	}
}

func TestListApprovedFiltersStatus(t *testing.T) {
	repo := newFakeConcertRepo()
	svc := NewService(repo, passthroughCache{})
	ctx := context.Background()

	created, _ := svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	svc.CreateConcert(ctx, uuid.New(), validCreateRequest())
	svc.Approve(ctx, uuid.MustParse(created.ID), "")

	result, err := svc.ListApproved(ctx, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.TotalCount != 1 || len(result.Concerts) != 1 {
		t.Fatalf("pending concert leaked into public list: %+v", result)
	}
	if result.Concerts[0].Status != StatusApproved {
		t.Fatalf("unexpected status %q", result.Concerts[0].Status)
	}
}
