package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/repository"
)

type NewBlock struct {
	Date      calendar.Date
	StartTime string
	EndTime   string
	Available bool
	Reason    string
}

// ProviderService — рабочие часы и блоки доступности провайдера.
type ProviderService struct {
	providers repository.ProviderRepository
	blocks    repository.AvailabilityRepository
	logger    *zap.Logger
}

func NewProviderService(
	providers repository.ProviderRepository,
	blocks repository.AvailabilityRepository,
	logger *zap.Logger,
) *ProviderService {
	return &ProviderService{providers: providers, blocks: blocks, logger: logger}
}

func (s *ProviderService) Create(ctx context.Context, displayName, start, end string) (*model.Provider, error) {
	p := &model.Provider{DisplayName: displayName, WorkingHoursStart: start, WorkingHoursEnd: end}
	if err := s.providers.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProviderService) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	p, err := s.providers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
		}
		return nil, err
	}
	return p, nil
}

func (s *ProviderService) SetWorkingHours(ctx context.Context, id uuid.UUID, start, end string) (*model.Provider, error) {
	if err := s.providers.UpdateWorkingHours(ctx, id, start, end); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// AddBlock объявляет исключение из рабочих часов на дату.
func (s *ProviderService) AddBlock(ctx context.Context, providerID uuid.UUID, nb NewBlock) (*model.AvailabilityBlock, error) {
	if nb.Date.IsZero() {
		return nil, calendar.ErrInvalidDate
	}
	if _, err := calendar.ParseClockRange(nb.StartTime, nb.EndTime); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, providerID); err != nil {
		return nil, err
	}

	block := &model.AvailabilityBlock{
		ProviderID: providerID,
		BlockDate:  model.ToDate(nb.Date),
		StartTime:  nb.StartTime,
		EndTime:    nb.EndTime,
		Available:  nb.Available,
		Reason:     nb.Reason,
	}
	if err := s.blocks.Create(ctx, block); err != nil {
		return nil, err
	}
	s.logger.Info("availability block added",
		zap.String("provider_id", providerID.String()),
		zap.String("date", nb.Date.String()),
		zap.String("range", nb.StartTime+"-"+nb.EndTime),
		zap.Bool("available", nb.Available),
	)
	return block, nil
}

func (s *ProviderService) Blocks(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]model.AvailabilityBlock, error) {
	return s.blocks.ListByProviderAndDates(ctx, providerID, []calendar.Date{date})
}
