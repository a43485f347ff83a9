package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
)

// ErrBlockOverlap — новый блок пересекается с блоком той же ширины на ту же
// дату: порядок применения таких блоков не определён.
var ErrBlockOverlap = errors.New("availability block overlaps a block of the same width")

type AvailabilityRepository interface {
	// Блоки провайдера на указанные даты.
	ListByProviderAndDates(ctx context.Context, providerID uuid.UUID, dates []calendar.Date) ([]model.AvailabilityBlock, error)
	// Создать блок. Вложенные блоки разрешены, пересечение с блоком
	// той же ширины — нет.
	Create(ctx context.Context, block *model.AvailabilityBlock) error
	WithTx(tx *gorm.DB) AvailabilityRepository
}

type GormAvailabilityRepository struct {
	db *gorm.DB
}

func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

func (r *GormAvailabilityRepository) WithTx(tx *gorm.DB) AvailabilityRepository {
	return &GormAvailabilityRepository{db: tx}
}

func (r *GormAvailabilityRepository) ListByProviderAndDates(
	ctx context.Context,
	providerID uuid.UUID,
	dates []calendar.Date,
) ([]model.AvailabilityBlock, error) {
	if len(dates) == 0 {
		return []model.AvailabilityBlock{}, nil
	}
	var blocks []model.AvailabilityBlock
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("block_date IN ?", toDates(dates)).
		Order("block_date ASC, start_time ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *GormAvailabilityRepository) Create(ctx context.Context, block *model.AvailabilityBlock) error {
	newRange, err := block.Range()
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.AvailabilityBlock
		err := tx.Where("provider_id = ? AND block_date = ?", block.ProviderID, block.BlockDate).
			Find(&existing).Error
		if err != nil {
			return err
		}
		ranges := make([]calendar.ClockRange, 0, len(existing))
		for i := range existing {
			rg, err := existing[i].Range()
			if err != nil {
				return err
			}
			if rg.Len() == newRange.Len() {
				ranges = append(ranges, rg)
			}
		}
		if has, conflicts := calendar.HasOverlap(newRange, ranges); has {
			return fmt.Errorf("%w: %s overlaps %v", ErrBlockOverlap, newRange, conflicts)
		}
		return tx.Create(block).Error
	})
}

func toDates(dates []calendar.Date) []datatypes.Date {
	out := make([]datatypes.Date, len(dates))
	for i, d := range dates {
		out[i] = model.ToDate(d)
	}
	return out
}
