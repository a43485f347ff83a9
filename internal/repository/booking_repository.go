package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
)

type BookingRepository interface {
	// Создать новое бронирование.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Найти бронирование, которого может и не быть: nil, nil если нет.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Получить бронирование с блокировкой строки до конца транзакции.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Обновить поля брони, если её статус всё ещё from.
	// false — статус успел измениться, ничего не записано.
	Transition(ctx context.Context, id uuid.UUID, from, to model.BookingStatus, fields map[string]any) (bool, error)
	// Удерживаемые брони, у которых истёк срок удержания.
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Booking, error)
	// Брони провайдера на дату с пагинацией.
	ListByProviderAndDate(ctx context.Context, providerID uuid.UUID, date calendar.Date, limit, offset int) ([]model.Booking, int64, error)
	WithTx(tx *gorm.DB) BookingRepository
}

// Реализация на GORM.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) WithTx(tx *gorm.DB) BookingRepository {
	return &GormBookingRepository{db: tx}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	res := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&b)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *GormBookingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from, to model.BookingStatus,
	fields map[string]any,
) (bool, error) {
	update := map[string]any{
		"status": to,
	}
	for k, v := range fields {
		update[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(update)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormBookingRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.Booking, error) {
	var bookings []model.Booking
	q := r.db.WithContext(ctx).
		Where("status = ?", model.BookingStatusHeld).
		Where("hold_expires_at IS NOT NULL AND hold_expires_at <= ?", now).
		Order("hold_expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListByProviderAndDate(
	ctx context.Context,
	providerID uuid.UUID,
	date calendar.Date,
	limit, offset int,
) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("provider_id = ?", providerID).
		Where("slot_date = ?", model.ToDate(date))

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("start_time ASC").Find(&bookings).Error; err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}
