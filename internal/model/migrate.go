package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра бронирования слотов.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Provider{},
		&AvailabilityBlock{},
		&ServicePackage{},
		&Booking{},
		&SlotClaim{},
		&Event{},
	)
}
