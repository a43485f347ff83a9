package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
)

type BookingStatus string

const (
	BookingStatusRequested BookingStatus = "requested"
	BookingStatusHeld      BookingStatus = "held"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Terminal — из этих статусов переходов нет.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// bookings — жизненный цикл брони в части, касающейся слотов.
// Остальные поля (адрес, клиент, оплата) принадлежат внешнему CRUD-слою.
type Booking struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID  `gorm:"type:uuid;not null;index"`
	PackageID  *uuid.UUID `gorm:"type:uuid;index"`

	SlotDate    datatypes.Date     `gorm:"type:date;not null;index"`
	StartTime   calendar.TimeOfDay `gorm:"type:varchar(5);not null"`
	DurationMin int                `gorm:"not null"`

	Status BookingStatus `gorm:"type:varchar(32);not null;index"`

	HoldExpiresAt *time.Time `gorm:"type:timestamp with time zone;index"`
	ConfirmedAt   *time.Time `gorm:"type:timestamp with time zone"`
	CompletedAt   *time.Time `gorm:"type:timestamp with time zone"`
	CancelledAt   *time.Time `gorm:"type:timestamp with time zone"`
	CancelReason  string     `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// StartSlot — первый слот брони.
func (b *Booking) StartSlot() calendar.Slot {
	return calendar.Slot{Date: calendar.DateOf(time.Time(b.SlotDate)), Time: b.StartTime}
}
