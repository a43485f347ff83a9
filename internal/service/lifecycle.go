package service

import "github.com/homefix/booking-core/internal/model"

// bookingEvent — событие жизненного цикла брони.
type bookingEvent string

const (
	eventHold           bookingEvent = "hold"
	eventConfirmPayment bookingEvent = "confirm_payment"
	eventFailPayment    bookingEvent = "fail_payment"
	eventComplete       bookingEvent = "complete"
	eventCancel         bookingEvent = "cancel"
	eventExpire         bookingEvent = "expire"

	// Не переход: бронь остаётся как есть.
	eventNone bookingEvent = "none"
)

// Разрешённые переходы. Из completed и cancelled переходов нет.
var transitions = map[model.BookingStatus]map[bookingEvent]model.BookingStatus{
	model.BookingStatusRequested: {
		eventHold:   model.BookingStatusHeld,
		eventCancel: model.BookingStatusCancelled,
	},
	model.BookingStatusHeld: {
		eventConfirmPayment: model.BookingStatusConfirmed,
		eventFailPayment:    model.BookingStatusCancelled,
		eventCancel:         model.BookingStatusCancelled,
		eventExpire:         model.BookingStatusCancelled,
	},
	model.BookingStatusConfirmed: {
		eventComplete: model.BookingStatusCompleted,
		eventCancel:   model.BookingStatusCancelled,
	},
}

func nextStatus(from model.BookingStatus, ev bookingEvent) (model.BookingStatus, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// auditEvent — какое событие аудита пишет переход.
func auditEvent(ev bookingEvent, to model.BookingStatus) model.EventType {
	switch {
	case ev == eventExpire:
		return model.EventTypeHoldExpired
	case to == model.BookingStatusHeld:
		return model.EventTypeBookingHeld
	case to == model.BookingStatusConfirmed:
		return model.EventTypeBookingConfirmed
	case to == model.BookingStatusCompleted:
		return model.EventTypeBookingCompleted
	default:
		return model.EventTypeBookingCancelled
	}
}
