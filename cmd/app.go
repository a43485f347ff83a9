package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/config"
	"github.com/homefix/booking-core/internal/db"
	"github.com/homefix/booking-core/internal/lock"
	"github.com/homefix/booking-core/internal/logging"
	"github.com/homefix/booking-core/internal/repository"
	"github.com/homefix/booking-core/internal/service"
)

// app — собранные зависимости процесса.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  *redis.Client

	packages     repository.PackageRepository
	availability *service.AvailabilityService
	reservations *service.ReservationService
	bookings     *service.BookingService
	providers    *service.ProviderService
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	// 1. Конфиг и логгер.
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	// 2. БД.
	gormDB, err := db.NewGormDB(cfg.DB())
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: gormDB}

	// 3. Блокировки слотов.
	var locker lock.Locker
	switch cfg.LockBackend {
	case "redis":
		a.redis, err = lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisLockDB)
		if err != nil {
			a.close()
			return nil, err
		}
		locker = lock.NewRedis(a.redis, cfg.LockTTL, logger)
	default:
		locker = lock.NewLocal()
	}

	// 4. Репозитории и сервисы.
	providerRepo := repository.NewGormProviderRepository(gormDB)
	blockRepo := repository.NewGormAvailabilityRepository(gormDB)
	claimRepo := repository.NewGormClaimRepository(gormDB)
	bookingRepo := repository.NewGormBookingRepository(gormDB)
	eventRepo := repository.NewGormEventRepository(gormDB)
	a.packages = repository.NewGormPackageRepository(gormDB)

	a.availability = service.NewAvailabilityService(gormDB, providerRepo, blockRepo, claimRepo, cfg.LockWait, logger)
	a.reservations = service.NewReservationService(gormDB, providerRepo, blockRepo, claimRepo, locker,
		service.ReservationOptions{LockWait: cfg.LockWait, Serializable: cfg.DBSerializable}, logger)
	a.bookings = service.NewBookingService(gormDB, bookingRepo, eventRepo, a.reservations,
		cfg.HoldWindow, cfg.ExpiryBatch, logger)
	a.providers = service.NewProviderService(providerRepo, blockRepo, logger)

	logger.Info("app initialised",
		zap.String("env", cfg.Env),
		zap.String("db_driver", cfg.DBDriver),
		zap.String("lock_backend", cfg.LockBackend),
	)
	return a, nil
}

func (a *app) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
