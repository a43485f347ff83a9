package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/lock"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/repository"
)

// ClaimSet: занятия, созданные одним резервированием.
type ClaimSet struct {
	BookingID  uuid.UUID
	ProviderID uuid.UUID
	Span       calendar.Span
	Claims     []model.SlotClaim
}

type ReservationOptions struct {
	// Сколько ждать блокировку (provider, date) и повторять транзакцию.
	LockWait time.Duration
	// SERIALIZABLE для транзакции резервирования (только Postgres).
	Serializable bool
}

// ReservationService: единственное место, где меняются занятия слотов.
type ReservationService struct {
	db           *gorm.DB
	providers    repository.ProviderRepository
	blocks       repository.AvailabilityRepository
	claims       repository.ClaimRepository
	availability *AvailabilityService
	locker       lock.Locker
	opts         ReservationOptions
	logger       *zap.Logger

	now func() time.Time
}

func NewReservationService(
	db *gorm.DB,
	providers repository.ProviderRepository,
	blocks repository.AvailabilityRepository,
	claims repository.ClaimRepository,
	locker lock.Locker,
	opts ReservationOptions,
	logger *zap.Logger,
) *ReservationService {
	if opts.LockWait <= 0 {
		opts.LockWait = lock.DefaultWait
	}
	return &ReservationService{
		db:           db,
		providers:    providers,
		blocks:       blocks,
		claims:       claims,
		availability: NewAvailabilityService(db, providers, blocks, claims, opts.LockWait, logger),
		locker:       locker,
		opts:         opts,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// afterClaim выполняется в той же транзакции сразу после записи занятий.
type afterClaim func(ctx context.Context, tx *gorm.DB, set *ClaimSet) error

// Reserve занимает все слоты спана от start для bookingID или не занимает
// ни одного. Занятые или закрытые слоты возвращаются в *ConflictError.
func (s *ReservationService) Reserve(
	ctx context.Context,
	providerID, bookingID uuid.UUID,
	start calendar.Slot,
	durationMinutes int,
) (*ClaimSet, error) {
	return s.reserve(ctx, providerID, bookingID, start, durationMinutes, nil)
}

func (s *ReservationService) reserve(
	ctx context.Context,
	providerID, bookingID uuid.UUID,
	start calendar.Slot,
	durationMinutes int,
	after afterClaim,
) (*ClaimSet, error) {
	if start.Date.IsZero() {
		return nil, calendar.ErrInvalidDate
	}
	span, err := calendar.SpanFor(start, durationMinutes)
	if err != nil {
		return nil, err
	}

	// Блокировка, транзакция и повтор укладываются в один дедлайн.
	deadline := time.Now().Add(s.opts.LockWait)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	release, err := s.locker.Acquire(ctx, lock.SpanKeys(providerID, span), s.opts.LockWait)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, fmt.Errorf("%w: waiting for %s", ErrReservationTimeout, span.Start)
		}
		return nil, err
	}
	defer release()

	log := s.logger.With(
		zap.String("provider_id", providerID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("start", span.Start.String()),
		zap.Int("slots", span.Len()),
	)

	for attempt := 1; ; attempt++ {
		var set *ClaimSet
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			set, err = s.claimTx(ctx, tx, providerID, bookingID, span)
			if err != nil {
				return err
			}
			if after != nil {
				return after(ctx, tx, set)
			}
			return nil
		}, s.writeOptions())

		switch {
		case err == nil:
			log.Info("slots reserved")
			return set, nil

		case errors.Is(err, gorm.ErrDuplicatedKey):
			// Сработал уникальный индекс: кто-то занял слот мимо блокировки.
			conflicts, rerr := s.availability.ConflictingSlots(ctx, providerID, span)
			if rerr != nil {
				return nil, asTimeout(rerr)
			}
			if len(conflicts) > 0 {
				log.Warn("unique index rejected claims", zap.Int("conflicts", len(conflicts)))
				return nil, &ConflictError{ConflictingSlots: conflicts}
			}
			if attempt > 1 || time.Now().After(deadline) {
				return nil, &ConflictError{ConflictingSlots: span.Slots}
			}

		case isSerializationFailure(err):
			if attempt > 1 || time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: serialization failure", ErrReservationTimeout)
			}
			log.Debug("serialization failure, retrying")

		default:
			return nil, asTimeout(err)
		}
	}
}

// claimTx: проверка и запись занятий внутри транзакции.
// Часы и занятия перечитываются заново, прежним ответам доступности не верим.
func (s *ReservationService) claimTx(
	ctx context.Context,
	tx *gorm.DB,
	providerID, bookingID uuid.UUID,
	span calendar.Span,
) (*ClaimSet, error) {
	claims := s.claims.WithTx(tx)

	held, err := claims.CountActiveByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}
	if held > 0 {
		return nil, fmt.Errorf("%w: %s", ErrBookingAlreadyHolds, bookingID)
	}

	snap, err := loadSnapshot(ctx, tx, s.providers, s.blocks, s.claims, providerID, span.Dates())
	if err != nil {
		return nil, err
	}
	if conflicts := snap.conflicts(span); len(conflicts) > 0 {
		return nil, &ConflictError{ConflictingSlots: conflicts}
	}

	rows := make([]model.SlotClaim, 0, span.Len())
	for _, slot := range span.Slots {
		rows = append(rows, model.SlotClaim{
			BookingID:  bookingID,
			ProviderID: providerID,
			SlotDate:   model.ToDate(slot.Date),
			SlotTime:   slot.Time,
			Status:     model.ClaimStatusBooked,
		})
	}
	if err := claims.CreateBatch(ctx, rows); err != nil {
		return nil, err
	}

	return &ClaimSet{
		BookingID:  bookingID,
		ProviderID: providerID,
		Span:       span,
		Claims:     rows,
	}, nil
}

// Release переводит все активные занятия брони в released. Повторный вызов
// и несуществующая бронь ничего не меняют.
func (s *ReservationService) Release(ctx context.Context, bookingID uuid.UUID) (int64, error) {
	var released int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		released, err = s.releaseTx(ctx, tx, bookingID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// releaseTx не берёт блокировку: трогает только занятия самой брони,
// а освобождение слота не может создать пересечение.
func (s *ReservationService) releaseTx(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) (int64, error) {
	released, err := s.claims.WithTx(tx).ReleaseByBooking(ctx, bookingID, s.now())
	if err != nil {
		return 0, fmt.Errorf("release claims: %w", err)
	}
	if released > 0 {
		s.logger.Info("claims released",
			zap.String("booking_id", bookingID.String()),
			zap.Int64("claims", released),
		)
	}
	return released, nil
}

// Claims: все занятия брони, включая освобождённые.
func (s *ReservationService) Claims(ctx context.Context, bookingID uuid.UUID) ([]model.SlotClaim, error) {
	return s.claims.ListByBooking(ctx, bookingID)
}

func (s *ReservationService) writeOptions() *sql.TxOptions {
	if !s.opts.Serializable || s.db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// isSerializationFailure: SQLSTATE 40001, Postgres просит повторить транзакцию.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
