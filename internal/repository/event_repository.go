package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/model"
)

type EventRepository interface {
	// Записать событие аудита; details сериализуется в JSON.
	Record(ctx context.Context, eventType model.EventType, bookingID, providerID *uuid.UUID, details any) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error)
	WithTx(tx *gorm.DB) EventRepository
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) WithTx(tx *gorm.DB) EventRepository {
	return &GormEventRepository{db: tx}
}

func (r *GormEventRepository) Record(
	ctx context.Context,
	eventType model.EventType,
	bookingID, providerID *uuid.UUID,
	details any,
) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model.Event{
		EventType:  eventType,
		BookingID:  bookingID,
		ProviderID: providerID,
		Details:    datatypes.JSON(raw),
	}).Error
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
