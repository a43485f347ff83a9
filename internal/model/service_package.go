package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// service_packages — пакет услуг из каталога. Ядру нужна только длительность.
type ServicePackage struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"type:varchar(255);not null"`

	// В минутах.
	DurationMin int `gorm:"not null"`

	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (p *ServicePackage) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
