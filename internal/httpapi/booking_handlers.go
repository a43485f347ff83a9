package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/service"
)

type reservationRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
	// Пусто — ID выдаст сервер.
	BookingID string `json:"booking_id"`
	PackageID string `json:"package_id"`
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	// 0 — длительность берётся из package_id.
	PackageDurationMinutes int `json:"package_duration_minutes"`
}

type reservationResponse struct {
	Booking bookingJSON `json:"booking"`
	Claims  []claimJSON `json:"claims"`
	// Конец услуги и конец последнего занятого слота.
	EndsAt        time.Time `json:"ends_at"`
	OccupiedUntil time.Time `json:"occupied_until"`
}

// POST /api/v1/reservations: удержание слотов под бронь.
func (s *Server) createReservation(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	// Границы слота проверяются до любых обращений к хранилищу.
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		s.writeError(c, err)
		return
	}
	start, err := calendar.NewSlot(date, req.StartTime)
	if err != nil {
		s.writeError(c, err)
		return
	}

	hold := service.HoldRequest{Start: start, DurationMinutes: req.PackageDurationMinutes}
	if hold.ProviderID, err = parseUUID(req.ProviderID, "provider_id"); err != nil {
		s.writeError(c, err)
		return
	}
	if req.BookingID != "" {
		if hold.BookingID, err = parseUUID(req.BookingID, "booking_id"); err != nil {
			s.writeError(c, err)
			return
		}
	}
	if req.PackageID != "" {
		packageID, err := parseUUID(req.PackageID, "package_id")
		if err != nil {
			s.writeError(c, err)
			return
		}
		hold.PackageID = &packageID
	}
	if hold.DurationMinutes == 0 {
		if hold.DurationMinutes, err = s.packageDuration(c, req.PackageID); err != nil {
			s.writeError(c, err)
			return
		}
	}

	res, err := s.Bookings.Hold(c.Request.Context(), hold)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservationResponse{
		Booking:       toBookingJSON(res.Booking),
		Claims:        toClaimJSON(res.Claims.Claims),
		EndsAt:        res.Claims.Span.End(),
		OccupiedUntil: res.Claims.Span.OccupiedUntil(),
	})
}

// GET /api/v1/bookings/:id
func (s *Server) getBooking(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	b, err := s.Bookings.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	claims, err := s.Bookings.Claims(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := toBookingJSON(b)
	out.Claims = toClaimJSON(claims)
	c.JSON(http.StatusOK, out)
}

// POST /api/v1/bookings/:id/release: идемпотентно.
func (s *Server) releaseBooking(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	b, err := s.Bookings.Release(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	resp := gin.H{"booking_id": id, "released": true}
	if b != nil {
		resp["booking"] = toBookingJSON(b)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) confirmBooking(c *gin.Context) {
	s.transition(c, s.Bookings.ConfirmPayment)
}

func (s *Server) failBooking(c *gin.Context) {
	s.transition(c, s.Bookings.FailPayment)
}

func (s *Server) completeBooking(c *gin.Context) {
	s.transition(c, s.Bookings.Complete)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancelBooking(c *gin.Context) {
	var req cancelRequest
	// Тело необязательно.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	s.transition(c, func(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
		return s.Bookings.Cancel(ctx, id, req.Reason)
	})
}

func (s *Server) transition(c *gin.Context, apply func(ctx context.Context, id uuid.UUID) (*model.Booking, error)) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	b, err := apply(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingJSON(b))
}

// POST /api/v1/holds/expire: ручной запуск того же, что делает планировщик.
func (s *Server) expireHolds(c *gin.Context) {
	expired, err := s.Bookings.ExpireStaleHolds(c.Request.Context(), s.now())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired, "count": len(expired)})
}
