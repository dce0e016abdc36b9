package concerts

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrConcertNotFound = errors.New("concert not found")
	ErrSectionNotFound = errors.New("section not found")
)

type Repository interface {
	Create(concert *Concert) error
	GetByID(id uuid.UUID) (*Concert, error)
	GetAll(query ConcertListQuery) ([]Concert, int64, error)
	UpdateStatus(id uuid.UUID, status Status, note string) (*Concert, error)
	Delete(id uuid.UUID) error
	GetSection(concertID uuid.UUID, name string) (*Section, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(concert *Concert) error {
	return r.db.Create(concert).Error
}

func (r *repository) GetByID(id uuid.UUID) (*Concert, error) {
	var concert Concert
	err := r.db.Preload("Sections").Where("id = ?", id).First(&concert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConcertNotFound
		}
		return nil, err
	}
	return &concert, nil
}

func (r *repository) GetAll(query ConcertListQuery) ([]Concert, int64, error) {
	var concerts []Concert
	var totalCount int64

	db := r.db.Model(&Concert{})

	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	if err := db.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	offset := (query.Page - 1) * query.Limit

	err := db.Preload("Sections").
		Order("date ASC").
		Offset(offset).
		Limit(query.Limit).
		Find(&concerts).Error

	return concerts, totalCount, err
}

func (r *repository) UpdateStatus(id uuid.UUID, status Status, note string) (*Concert, error) {
	var concert Concert
	if err := r.db.Where("id = ?", id).First(&concert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConcertNotFound
		}
		return nil, err
	}

	updates := map[string]interface{}{
		"status":      status,
		"review_note": note,
	}
	if err := r.db.Model(&concert).Updates(updates).Error; err != nil {
		return nil, err
	}

	return r.GetByID(id)
}

func (r *repository) Delete(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("concert_id = ?", id).Delete(&Section{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&Concert{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcertNotFound
		}
		return nil
	})
}

func (r *repository) GetSection(concertID uuid.UUID, name string) (*Section, error) {
	var section Section
	err := r.db.Where("concert_id = ? AND name = ?", concertID, name).First(&section).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}
	return &section, nil
}
