package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/model"
)

// PackageRepository — узкий доступ к каталогу: ядру нужна только длительность пакета.
type PackageRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ServicePackage, error)
	Create(ctx context.Context, pkg *model.ServicePackage) error
}

type GormPackageRepository struct {
	db *gorm.DB
}

func NewGormPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

func (r *GormPackageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ServicePackage, error) {
	var p model.ServicePackage
	if err := r.db.WithContext(ctx).First(&p, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPackageRepository) Create(ctx context.Context, pkg *model.ServicePackage) error {
	return r.db.WithContext(ctx).Create(pkg).Error
}
