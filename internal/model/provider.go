package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
)

const (
	DefaultWorkingHoursStart = "09:00"
	DefaultWorkingHoursEnd   = "17:00"
)

// Provider — исполнитель услуг с рабочими часами по умолчанию.
// Часы действуют каждый день, пока их не переопределяет AvailabilityBlock.
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Имя/отображаемое название в интерфейсе.
	DisplayName string `gorm:"type:varchar(255);not null"`

	// Рабочие часы "ЧЧ:ММ". Равные значения — по умолчанию выходной.
	WorkingHoursStart string `gorm:"type:varchar(5);not null;default:'09:00'"`
	WorkingHoursEnd   string `gorm:"type:varchar(5);not null;default:'17:00'"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Blocks []AvailabilityBlock `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// WorkingHours возвращает рабочий интервал провайдера.
// ok=false — провайдер по умолчанию не работает.
func (p *Provider) WorkingHours() (r calendar.ClockRange, ok bool, err error) {
	start, err := calendar.ParseClock(p.WorkingHoursStart)
	if err != nil {
		return calendar.ClockRange{}, false, fmt.Errorf("provider %s working hours start: %w", p.ID, err)
	}
	end, err := calendar.ParseClock(p.WorkingHoursEnd)
	if err != nil {
		return calendar.ClockRange{}, false, fmt.Errorf("provider %s working hours end: %w", p.ID, err)
	}
	if start == end {
		return calendar.ClockRange{}, false, nil
	}
	r, err = calendar.NewClockRange(start, end)
	if err != nil {
		return calendar.ClockRange{}, false, fmt.Errorf("provider %s working hours: %w", p.ID, err)
	}
	return r, true, nil
}

// Validate проверяет профиль перед записью.
func (p *Provider) Validate() error {
	_, _, err := p.WorkingHours()
	return err
}

func (p *Provider) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.WorkingHoursStart == "" {
		p.WorkingHoursStart = DefaultWorkingHoursStart
	}
	if p.WorkingHoursEnd == "" {
		p.WorkingHoursEnd = DefaultWorkingHoursEnd
	}
	return p.Validate()
}
