package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
)

// availability_blocks — заявленные провайдером исключения из рабочих часов
// (отпуск, больничный, продлённый день) на конкретную дату.
type AvailabilityBlock struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;index:idx_blocks_provider_date,priority:1"`

	// Чистая дата без времени — datatypes.Date
	BlockDate datatypes.Date `gorm:"type:date;not null;index:idx_blocks_provider_date,priority:2"`

	// "ЧЧ:ММ", EndTime допускает "24:00".
	StartTime string `gorm:"type:varchar(5);not null"`
	EndTime   string `gorm:"type:varchar(5);not null"`

	// false — интервал закрыт, true — интервал открыт поверх рабочих часов.
	Available bool   `gorm:"not null;default:false"`
	Reason    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (b *AvailabilityBlock) Range() (calendar.ClockRange, error) {
	r, err := calendar.ParseClockRange(b.StartTime, b.EndTime)
	if err != nil {
		return calendar.ClockRange{}, fmt.Errorf("availability block %s: %w", b.ID, err)
	}
	return r, nil
}

func (b *AvailabilityBlock) Date() calendar.Date {
	return calendar.DateOf(time.Time(b.BlockDate))
}

func (b *AvailabilityBlock) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := b.Range()
	return err
}
