package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeBookingHeld      EventType = "booking_held"
	EventTypeBookingConfirmed EventType = "booking_confirmed"
	EventTypeBookingCompleted EventType = "booking_completed"
	EventTypeBookingCancelled EventType = "booking_cancelled"
	EventTypeHoldExpired      EventType = "hold_expired"
	EventTypeClaimsReleased   EventType = "claims_released"
)

// events — события аудита
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	BookingID  *uuid.UUID `gorm:"type:uuid;index"`
	ProviderID *uuid.UUID `gorm:"type:uuid;index"`

	// Переход статусов, причина и т.п.
	Details datatypes.JSON `gorm:"type:jsonb"`
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
