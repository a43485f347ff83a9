package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/repository"
)

const DefaultHoldWindow = 15 * time.Minute

type HoldRequest struct {
	// uuid.Nil: сгенерировать новый.
	BookingID       uuid.UUID
	ProviderID      uuid.UUID
	PackageID       *uuid.UUID
	Start           calendar.Slot
	DurationMinutes int
}

type HoldResult struct {
	Booking *model.Booking
	Claims  *ClaimSet
}

// BookingService ведёт бронь по статусам и держит занятия слотов
// в соответствии со статусом. Сами занятия меняет только ReservationService.
type BookingService struct {
	db           *gorm.DB
	bookings     repository.BookingRepository
	events       repository.EventRepository
	reservations *ReservationService
	holdWindow   time.Duration
	expiryBatch  int
	logger       *zap.Logger

	now func() time.Time
}

func NewBookingService(
	db *gorm.DB,
	bookings repository.BookingRepository,
	events repository.EventRepository,
	reservations *ReservationService,
	holdWindow time.Duration,
	expiryBatch int,
	logger *zap.Logger,
) *BookingService {
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	if expiryBatch <= 0 {
		expiryBatch = 100
	}
	return &BookingService{
		db:           db,
		bookings:     bookings,
		events:       events,
		reservations: reservations,
		holdWindow:   holdWindow,
		expiryBatch:  expiryBatch,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Hold: requested -> held. Бронь и её занятия появляются в одной транзакции.
func (s *BookingService) Hold(ctx context.Context, req HoldRequest) (*HoldResult, error) {
	if req.BookingID == uuid.Nil {
		req.BookingID = uuid.New()
	}

	var booking *model.Booking
	set, err := s.reservations.reserve(ctx, req.ProviderID, req.BookingID, req.Start, req.DurationMinutes,
		func(ctx context.Context, tx *gorm.DB, set *ClaimSet) error {
			bookings := s.bookings.WithTx(tx)

			existing, err := bookings.FindByID(ctx, req.BookingID)
			if err != nil {
				return fmt.Errorf("load booking: %w", err)
			}
			if existing != nil {
				if existing.Status.Terminal() {
					return &TransitionError{BookingID: existing.ID, From: existing.Status, Event: string(eventHold)}
				}
				return fmt.Errorf("%w: %s", ErrBookingAlreadyHolds, existing.ID)
			}

			status, _ := nextStatus(model.BookingStatusRequested, eventHold)
			expires := s.now().Add(s.holdWindow)
			booking = &model.Booking{
				ID:            req.BookingID,
				ProviderID:    req.ProviderID,
				PackageID:     req.PackageID,
				SlotDate:      model.ToDate(set.Span.Start.Date),
				StartTime:     set.Span.Start.Time,
				DurationMin:   set.Span.DurationMinutes,
				Status:        status,
				HoldExpiresAt: &expires,
			}
			if err := bookings.Create(ctx, booking); err != nil {
				return fmt.Errorf("create booking: %w", err)
			}

			return s.events.WithTx(tx).Record(ctx, model.EventTypeBookingHeld, &booking.ID, &booking.ProviderID, map[string]any{
				"from":            model.BookingStatusRequested,
				"to":              status,
				"start":           set.Span.Start.String(),
				"slots":           set.Span.Len(),
				"hold_expires_at": expires,
			})
		})
	if err != nil {
		return nil, err
	}
	return &HoldResult{Booking: booking, Claims: set}, nil
}

// ConfirmPayment: held -> confirmed. Если удержание уже истекло, бронь
// отменяется, слоты освобождаются и возвращается ErrHoldExpired.
func (s *BookingService) ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	expired := false
	b, err := s.apply(ctx, id, s.now(), "", func(b *model.Booking, now time.Time) bookingEvent {
		if b.Status == model.BookingStatusHeld && holdExpired(b, now) {
			expired = true
			return eventExpire
		}
		return eventConfirmPayment
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return b, fmt.Errorf("%w: booking %s", ErrHoldExpired, id)
	}
	return b, nil
}

// FailPayment: held -> cancelled, слоты освобождаются.
func (s *BookingService) FailPayment(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return s.apply(ctx, id, s.now(), "payment failed", constEvent(eventFailPayment))
}

// Complete: confirmed -> completed. Занятия остаются как история.
func (s *BookingService) Complete(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return s.apply(ctx, id, s.now(), "", constEvent(eventComplete))
}

// Cancel: held/confirmed -> cancelled, слоты освобождаются.
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error) {
	return s.apply(ctx, id, s.now(), reason, constEvent(eventCancel))
}

// Release: освобождение слотов брони по запросу клиента. Активная бронь
// отменяется, для завершённой, отменённой или неизвестной брони ничего
// не меняется. Вызов идемпотентен.
func (s *BookingService) Release(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := s.apply(ctx, id, s.now(), "released", constEvent(eventCancel))
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, ErrUnknownBooking):
		// Занятия без брони (прямой Reserve) тоже освобождаем.
		released, err := s.reservations.Release(ctx, id)
		if err != nil {
			return nil, err
		}
		if released > 0 {
			details := map[string]any{"released_claims": released}
			if err := s.events.Record(ctx, model.EventTypeClaimsReleased, &id, nil, details); err != nil {
				return nil, fmt.Errorf("record event: %w", err)
			}
		}
		return nil, nil
	case errors.Is(err, ErrInvalidTransition):
		return s.Get(ctx, id)
	default:
		return nil, err
	}
}

// ExpireStaleHolds отменяет удержания, истёкшие к now, и возвращает их ID.
// Удержания выбираются пачками по expiryBatch, пока не закончатся.
func (s *BookingService) ExpireStaleHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	expired := []uuid.UUID{}
	for {
		stale, err := s.bookings.ListExpiredHolds(ctx, now, s.expiryBatch)
		if err != nil {
			return expired, fmt.Errorf("list expired holds: %w", err)
		}

		moved := 0
		for i := range stale {
			_, err := s.apply(ctx, stale[i].ID, now, "hold expired", func(b *model.Booking, now time.Time) bookingEvent {
				if b.Status != model.BookingStatusHeld || !holdExpired(b, now) {
					// Бронь успели подтвердить или отменить.
					return eventNone
				}
				return eventExpire
			})
			if err != nil {
				if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrUnknownBooking) {
					continue
				}
				return expired, err
			}
			expired = append(expired, stale[i].ID)
			moved++
		}

		// Неполная пачка: истёкших больше нет. Пачка без единого перехода
		// означает, что её разобрали параллельно.
		if len(stale) < s.expiryBatch || moved == 0 {
			break
		}
	}

	if len(expired) > 0 {
		s.logger.Info("expired stale holds", zap.Int("count", len(expired)))
	}
	return expired, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBooking, id)
		}
		return nil, err
	}
	return b, nil
}

// Claims: занятия брони, включая освобождённые.
func (s *BookingService) Claims(ctx context.Context, id uuid.UUID) ([]model.SlotClaim, error) {
	return s.reservations.Claims(ctx, id)
}

// ListByProviderAndDate: брони провайдера на дату с пагинацией.
func (s *BookingService) ListByProviderAndDate(
	ctx context.Context,
	providerID uuid.UUID,
	date calendar.Date,
	limit, offset int,
) ([]model.Booking, int64, error) {
	return s.bookings.ListByProviderAndDate(ctx, providerID, date, limit, offset)
}

// chooseEvent выбирает событие по текущему состоянию брони.
type chooseEvent func(b *model.Booking, now time.Time) bookingEvent

func constEvent(ev bookingEvent) chooseEvent {
	return func(*model.Booking, time.Time) bookingEvent { return ev }
}

// apply: один переход в одной транзакции: статус, освобождение слотов
// при отмене и событие аудита.
func (s *BookingService) apply(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
	reason string,
	choose chooseEvent,
) (*model.Booking, error) {
	var out *model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookings := s.bookings.WithTx(tx)

		b, err := bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownBooking, id)
			}
			return fmt.Errorf("load booking: %w", err)
		}

		ev := choose(b, now)
		to, ok := nextStatus(b.Status, ev)
		if !ok {
			return &TransitionError{BookingID: id, From: b.Status, Event: string(ev)}
		}

		fields := map[string]any{}
		switch to {
		case model.BookingStatusConfirmed:
			fields["confirmed_at"] = now
			fields["hold_expires_at"] = nil
		case model.BookingStatusCompleted:
			fields["completed_at"] = now
		case model.BookingStatusCancelled:
			fields["cancelled_at"] = now
			fields["hold_expires_at"] = nil
			fields["cancel_reason"] = reason
		}

		moved, err := bookings.Transition(ctx, id, b.Status, to, fields)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if !moved {
			return &TransitionError{BookingID: id, From: b.Status, Event: string(ev)}
		}

		details := map[string]any{"from": b.Status, "to": to, "event": ev}
		if reason != "" {
			details["reason"] = reason
		}
		if to == model.BookingStatusCancelled {
			released, err := s.reservations.releaseTx(ctx, tx, id)
			if err != nil {
				return err
			}
			details["released_claims"] = released
		}
		if err := s.events.WithTx(tx).Record(ctx, auditEvent(ev, to), &b.ID, &b.ProviderID, details); err != nil {
			return fmt.Errorf("record event: %w", err)
		}

		out, err = bookings.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking transition",
		zap.String("booking_id", id.String()),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

func holdExpired(b *model.Booking, now time.Time) bool {
	return b.HoldExpiresAt != nil && !now.Before(*b.HoldExpiresAt)
}
