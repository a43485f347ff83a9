package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/lock"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/repository"
)

// SlotState: состояние слота в расписании дня.
type SlotState string

const (
	SlotStateFree        SlotState = "free"
	SlotStateBooked      SlotState = "booked"
	SlotStateUnavailable SlotState = "unavailable"
)

type ScheduleSlot struct {
	Date      calendar.Date      `json:"date"`
	StartTime calendar.TimeOfDay `json:"start_time"`
	State     SlotState          `json:"state"`
	BookingID *uuid.UUID         `json:"booking_id,omitempty"`
}

type AvailabilityService struct {
	db        *gorm.DB
	providers repository.ProviderRepository
	blocks    repository.AvailabilityRepository
	claims    repository.ClaimRepository
	// Предел на одно чтение, включая ожидание соединения из пула.
	wait   time.Duration
	logger *zap.Logger
}

func NewAvailabilityService(
	db *gorm.DB,
	providers repository.ProviderRepository,
	blocks repository.AvailabilityRepository,
	claims repository.ClaimRepository,
	wait time.Duration,
	logger *zap.Logger,
) *AvailabilityService {
	if wait <= 0 {
		wait = lock.DefaultWait
	}
	return &AvailabilityService{
		db:        db,
		providers: providers,
		blocks:    blocks,
		claims:    claims,
		wait:      wait,
		logger:    logger,
	}
}

// AvailableStarts: слоты даты, с которых можно начать услугу длительностью
// durationMinutes, по возрастанию. Пустой результат — не ошибка.
func (s *AvailabilityService) AvailableStarts(
	ctx context.Context,
	providerID uuid.UUID,
	date calendar.Date,
	durationMinutes int,
) ([]calendar.Slot, error) {
	if date.IsZero() {
		return nil, calendar.ErrInvalidDate
	}
	n, err := calendar.SlotCount(durationMinutes)
	if err != nil {
		return nil, err
	}

	// Спан последнего слота дня может уйти на следующие даты.
	lastDay := date.AddDays((calendar.SlotsPerDay - 1 + n - 1) / calendar.SlotsPerDay)

	snap, err := s.read(ctx, providerID, datesBetween(date, lastDay))
	if err != nil {
		return nil, err
	}

	starts := make([]calendar.Slot, 0, calendar.SlotsPerDay)
	for i := 0; i < calendar.SlotsPerDay; i++ {
		tod, _ := calendar.TimeOfDayFromIndex(i)
		start := calendar.Slot{Date: date, Time: tod}
		if !snap.open(start) {
			continue
		}
		span, err := calendar.SpanFor(start, durationMinutes)
		if err != nil {
			return nil, err
		}
		if len(snap.conflicts(span)) == 0 {
			starts = append(starts, start)
		}
	}
	return starts, nil
}

// DaySchedule: все 48 слотов даты с их состоянием.
func (s *AvailabilityService) DaySchedule(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]ScheduleSlot, error) {
	if date.IsZero() {
		return nil, calendar.ErrInvalidDate
	}

	snap, err := s.read(ctx, providerID, []calendar.Date{date})
	if err != nil {
		return nil, err
	}

	out := make([]ScheduleSlot, 0, calendar.SlotsPerDay)
	for i := 0; i < calendar.SlotsPerDay; i++ {
		tod, _ := calendar.TimeOfDayFromIndex(i)
		slot := calendar.Slot{Date: date, Time: tod}
		entry := ScheduleSlot{Date: date, StartTime: tod, State: SlotStateFree}
		if bookingID, ok := snap.claimed[slot]; ok {
			id := bookingID
			entry.State = SlotStateBooked
			entry.BookingID = &id
		} else if !snap.open(slot) {
			entry.State = SlotStateUnavailable
		}
		out = append(out, entry)
	}
	return out, nil
}

// ConflictingSlots: слоты спана, которые сейчас закрыты или заняты.
func (s *AvailabilityService) ConflictingSlots(ctx context.Context, providerID uuid.UUID, span calendar.Span) ([]calendar.Slot, error) {
	snap, err := s.read(ctx, providerID, span.Dates())
	if err != nil {
		return nil, err
	}
	return snap.conflicts(span), nil
}

// read загружает снимок в одной транзакции не дольше s.wait.
func (s *AvailabilityService) read(ctx context.Context, providerID uuid.UUID, dates []calendar.Date) (*snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	var snap *snapshot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, s.providers, s.blocks, s.claims, providerID, dates)
		return err
	}, readOptions(s.db))
	if err != nil {
		s.logAmbiguous(err)
		return nil, asTimeout(err)
	}
	return snap, nil
}

func (s *AvailabilityService) logAmbiguous(err error) {
	var amb *AmbiguousAvailabilityError
	if errors.As(err, &amb) {
		s.logger.Error("ambiguous availability blocks",
			zap.String("provider_id", amb.ProviderID.String()),
			zap.String("date", amb.Date.String()),
			zap.Error(err),
		)
	}
}

// snapshot: открытые часы и активные занятия провайдера на набор дат,
// прочитанные в одной транзакции.
type snapshot struct {
	provider *model.Provider
	hours    map[calendar.Date]*dayHours
	claimed  map[calendar.Slot]uuid.UUID
}

func loadSnapshot(
	ctx context.Context,
	tx *gorm.DB,
	providers repository.ProviderRepository,
	blocks repository.AvailabilityRepository,
	claims repository.ClaimRepository,
	providerID uuid.UUID,
	dates []calendar.Date,
) (*snapshot, error) {
	provider, err := providers.WithTx(tx).GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerID)
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	blockRows, err := blocks.WithTx(tx).ListByProviderAndDates(ctx, providerID, dates)
	if err != nil {
		return nil, fmt.Errorf("load availability blocks: %w", err)
	}
	claimRows, err := claims.WithTx(tx).ListActiveByProviderDates(ctx, providerID, dates)
	if err != nil {
		return nil, fmt.Errorf("load claims: %w", err)
	}

	snap := &snapshot{
		provider: provider,
		hours:    make(map[calendar.Date]*dayHours, len(dates)),
		claimed:  make(map[calendar.Slot]uuid.UUID, len(claimRows)),
	}
	for _, d := range dates {
		h, err := resolveOpenHours(provider, d, blockRows)
		if err != nil {
			return nil, err
		}
		snap.hours[d] = h
	}
	for i := range claimRows {
		snap.claimed[claimRows[i].Slot()] = claimRows[i].BookingID
	}
	return snap, nil
}

func (s *snapshot) open(slot calendar.Slot) bool {
	h, ok := s.hours[slot.Date]
	return ok && h.slotOpen(slot.Time)
}

// conflicts: слоты спана, которые закрыты или уже заняты.
func (s *snapshot) conflicts(span calendar.Span) []calendar.Slot {
	var out []calendar.Slot
	for _, slot := range span.Slots {
		if _, taken := s.claimed[slot]; taken || !s.open(slot) {
			out = append(out, slot)
		}
	}
	return out
}

func datesBetween(from, to calendar.Date) []calendar.Date {
	dates := []calendar.Date{from}
	for d := from.AddDays(1); !d.After(to); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// asTimeout: истёкший дедлайн операции превращается в ErrReservationTimeout.
func asTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrReservationTimeout) {
		return fmt.Errorf("%w: %v", ErrReservationTimeout, err)
	}
	return err
}

// readOptions: один снимок на всё чтение. sqlite и так читает
// согласованно внутри транзакции, опции нужны только Postgres.
func readOptions(db *gorm.DB) *sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}
