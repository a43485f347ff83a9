// Package httpapi — HTTP-интерфейс ядра бронирования поверх gin.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/service"
)

type AvailabilityReader interface {
	AvailableStarts(ctx context.Context, providerID uuid.UUID, date calendar.Date, durationMinutes int) ([]calendar.Slot, error)
	DaySchedule(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]service.ScheduleSlot, error)
}

type BookingManager interface {
	Hold(ctx context.Context, req service.HoldRequest) (*service.HoldResult, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	FailPayment(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.Booking, error)
	Release(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	ExpireStaleHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	Claims(ctx context.Context, id uuid.UUID) ([]model.SlotClaim, error)
	ListByProviderAndDate(ctx context.Context, providerID uuid.UUID, date calendar.Date, limit, offset int) ([]model.Booking, int64, error)
}

type ProviderManager interface {
	Create(ctx context.Context, displayName, start, end string) (*model.Provider, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	SetWorkingHours(ctx context.Context, id uuid.UUID, start, end string) (*model.Provider, error)
	AddBlock(ctx context.Context, providerID uuid.UUID, nb service.NewBlock) (*model.AvailabilityBlock, error)
	Blocks(ctx context.Context, providerID uuid.UUID, date calendar.Date) ([]model.AvailabilityBlock, error)
}

type PackageLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ServicePackage, error)
}

type Deps struct {
	Availability AvailabilityReader
	Bookings     BookingManager
	Providers    ProviderManager
	Packages     PackageLookup
	// Ping проверяет БД для /healthz.
	Ping func(ctx context.Context) error
}

type Options struct {
	MaxRequestsPerMin int
	Production        bool
}

type Server struct {
	Deps
	logger *zap.Logger
	now    func() time.Time
}

// NewRouter собирает gin-роутер со всеми маршрутами /api/v1.
func NewRouter(deps Deps, opts Options, logger *zap.Logger) *gin.Engine {
	if opts.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		Deps:   deps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	r := gin.New()
	r.Use(recovery(logger), requestLogger(logger))

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/api/v1", rateLimit(opts.MaxRequestsPerMin, logger))
	{
		v1.GET("/availability", s.getAvailability)
		v1.POST("/reservations", s.createReservation)

		v1.GET("/bookings/:id", s.getBooking)
		v1.POST("/bookings/:id/release", s.releaseBooking)
		v1.POST("/bookings/:id/confirm", s.confirmBooking)
		v1.POST("/bookings/:id/fail", s.failBooking)
		v1.POST("/bookings/:id/complete", s.completeBooking)
		v1.POST("/bookings/:id/cancel", s.cancelBooking)

		v1.POST("/holds/expire", s.expireHolds)

		v1.POST("/providers", s.createProvider)
		v1.GET("/providers/:id", s.getProvider)
		v1.PUT("/providers/:id/working-hours", s.setWorkingHours)
		v1.GET("/providers/:id/schedule", s.getSchedule)
		v1.GET("/providers/:id/blocks", s.listBlocks)
		v1.POST("/providers/:id/blocks", s.createBlock)
		v1.GET("/providers/:id/bookings", s.listBookings)
	}

	return r
}

func (s *Server) healthz(c *gin.Context) {
	if s.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
