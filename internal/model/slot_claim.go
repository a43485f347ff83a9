package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
)

// Статус занятия слота.
type ClaimStatus string

const (
	ClaimStatusBooked   ClaimStatus = "booked"
	ClaimStatusReleased ClaimStatus = "released"
)

// ActiveClaimIndex — частичный уникальный индекс: на (provider, date, time)
// может быть не больше одной записи со статусом booked.
const ActiveClaimIndex = "idx_slot_claims_active"

// slot_claims — какие слоты занимает бронь. Записи не удаляются:
// при отмене статус меняется на released.
type SlotClaim struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	BookingID uuid.UUID `gorm:"type:uuid;not null;index"`

	ProviderID uuid.UUID          `gorm:"type:uuid;not null;index:idx_slot_claims_active,unique,where:status = 'booked',priority:1;index:idx_slot_claims_lookup,priority:1"`
	SlotDate   datatypes.Date     `gorm:"type:date;not null;index:idx_slot_claims_active,unique,where:status = 'booked',priority:2;index:idx_slot_claims_lookup,priority:2"`
	SlotTime   calendar.TimeOfDay `gorm:"type:varchar(5);not null;index:idx_slot_claims_active,unique,where:status = 'booked',priority:3"`

	Status ClaimStatus `gorm:"type:varchar(16);not null;index"`

	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
	ReleasedAt *time.Time `gorm:"type:timestamp with time zone"`
}

func (c *SlotClaim) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Slot — позиция занятого слота на сетке.
func (c *SlotClaim) Slot() calendar.Slot {
	return calendar.Slot{Date: calendar.DateOf(time.Time(c.SlotDate)), Time: c.SlotTime}
}

// ToDate переводит календарную дату в колонку date.
func ToDate(d calendar.Date) datatypes.Date {
	return datatypes.Date(d.Time())
}
