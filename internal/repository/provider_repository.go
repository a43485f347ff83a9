package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/model"
)

type ProviderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	Create(ctx context.Context, provider *model.Provider) error
	UpdateWorkingHours(ctx context.Context, id uuid.UUID, start, end string) error
	WithTx(tx *gorm.DB) ProviderRepository
}

type GormProviderRepository struct {
	db *gorm.DB
}

func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) WithTx(tx *gorm.DB) ProviderRepository {
	return &GormProviderRepository{db: tx}
}

func (r *GormProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProviderRepository) Create(ctx context.Context, provider *model.Provider) error {
	return r.db.WithContext(ctx).Create(provider).Error
}

func (r *GormProviderRepository) UpdateWorkingHours(ctx context.Context, id uuid.UUID, start, end string) error {
	probe := model.Provider{ID: id, WorkingHoursStart: start, WorkingHoursEnd: end}
	if err := probe.Validate(); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&model.Provider{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"working_hours_start": start,
			"working_hours_end":   end,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
