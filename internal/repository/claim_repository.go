package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
)

type ClaimRepository interface {
	// Активные (booked) занятия провайдера на указанные даты.
	ListActiveByProviderDates(ctx context.Context, providerID uuid.UUID, dates []calendar.Date) ([]model.SlotClaim, error)
	// Все занятия брони (любые статусы).
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SlotClaim, error)
	// Количество активных занятий брони.
	CountActiveByBooking(ctx context.Context, bookingID uuid.UUID) (int64, error)
	// Создать занятия одной вставкой.
	CreateBatch(ctx context.Context, claims []model.SlotClaim) error
	// Перевести все активные занятия брони в released.
	ReleaseByBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (int64, error)
	WithTx(tx *gorm.DB) ClaimRepository
}

type GormClaimRepository struct {
	db *gorm.DB
}

func NewGormClaimRepository(db *gorm.DB) *GormClaimRepository {
	return &GormClaimRepository{db: db}
}

func (r *GormClaimRepository) WithTx(tx *gorm.DB) ClaimRepository {
	return &GormClaimRepository{db: tx}
}

func (r *GormClaimRepository) ListActiveByProviderDates(
	ctx context.Context,
	providerID uuid.UUID,
	dates []calendar.Date,
) ([]model.SlotClaim, error) {
	if len(dates) == 0 {
		return []model.SlotClaim{}, nil
	}
	var claims []model.SlotClaim
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("slot_date IN ?", toDates(dates)).
		Where("status = ?", model.ClaimStatusBooked).
		Order("slot_date ASC, slot_time ASC").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *GormClaimRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.SlotClaim, error) {
	var claims []model.SlotClaim
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("slot_date ASC, slot_time ASC").
		Find(&claims).Error
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *GormClaimRepository) CountActiveByBooking(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.SlotClaim{}).
		Where("booking_id = ? AND status = ?", bookingID, model.ClaimStatusBooked).
		Count(&n).Error
	return n, err
}

func (r *GormClaimRepository) CreateBatch(ctx context.Context, claims []model.SlotClaim) error {
	if len(claims) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&claims).Error
}

func (r *GormClaimRepository) ReleaseByBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.SlotClaim{}).
		Where("booking_id = ? AND status = ?", bookingID, model.ClaimStatusBooked).
		Updates(map[string]any{
			"status":      model.ClaimStatusReleased,
			"released_at": at,
		})
	return res.RowsAffected, res.Error
}
