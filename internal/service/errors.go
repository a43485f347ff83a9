package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
)

var (
	// Пересекающиеся блоки одной ширины: ошибка конфигурации, не повторять.
	ErrAmbiguousAvailability = errors.New("ambiguous availability blocks")
	// Слоты заняты или закрыты; можно повторить после нового запроса доступности.
	ErrConflict = errors.New("slot conflict")
	// Не дождались блокировки или дедлайна; временная ошибка.
	ErrReservationTimeout = errors.New("reservation timed out")

	ErrUnknownProvider     = errors.New("unknown provider")
	ErrUnknownBooking      = errors.New("unknown booking")
	ErrInvalidTransition   = errors.New("invalid booking transition")
	ErrHoldExpired         = errors.New("hold expired")
	ErrBookingAlreadyHolds = errors.New("booking already holds slots")
)

// AmbiguousAvailabilityError — какие блоки на какую дату нельзя упорядочить.
type AmbiguousAvailabilityError struct {
	ProviderID uuid.UUID
	Date       calendar.Date
	Ranges     []calendar.ClockRange
}

func (e *AmbiguousAvailabilityError) Error() string {
	parts := make([]string, len(e.Ranges))
	for i, r := range e.Ranges {
		parts[i] = r.String()
	}
	return fmt.Sprintf("%v: provider %s on %s: %s",
		ErrAmbiguousAvailability, e.ProviderID, e.Date, strings.Join(parts, ", "))
}

func (e *AmbiguousAvailabilityError) Unwrap() error { return ErrAmbiguousAvailability }

// ConflictError перечисляет слоты, из-за которых резервирование не прошло.
// По ним клиент может перерисовать доступность без повторного запроса.
type ConflictError struct {
	ConflictingSlots []calendar.Slot
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.ConflictingSlots))
	for i, s := range e.ConflictingSlots {
		parts[i] = s.String()
	}
	return fmt.Sprintf("%v: %s", ErrConflict, strings.Join(parts, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type TransitionError struct {
	BookingID uuid.UUID
	From      model.BookingStatus
	Event     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: booking %s is %s, cannot %s", ErrInvalidTransition, e.BookingID, e.From, e.Event)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
