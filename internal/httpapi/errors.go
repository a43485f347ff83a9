package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/repository"
	"github.com/homefix/booking-core/internal/service"
)

var (
	errBadRequest     = errors.New("bad request")
	errUnknownPackage = errors.New("unknown package")
)

type errorResponse struct {
	Error string `json:"error"`
}

type conflictResponse struct {
	Error            string     `json:"error"`
	ConflictingSlots []slotJSON `json:"conflicting_slots"`
}

// writeError переводит ошибку сервиса в HTTP-ответ.
func (s *Server) writeError(c *gin.Context, err error) {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, conflictResponse{
			Error:            err.Error(),
			ConflictingSlots: toSlotJSON(conflict.ConflictingSlots),
		})

	case errors.Is(err, calendar.ErrInvalidSlotBoundary),
		errors.Is(err, calendar.ErrInvalidDuration),
		errors.Is(err, calendar.ErrInvalidDate),
		errors.Is(err, calendar.ErrInvalidClock),
		errors.Is(err, calendar.ErrInvalidTimeRange),
		errors.Is(err, errBadRequest):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrUnknownProvider),
		errors.Is(err, service.ErrUnknownBooking),
		errors.Is(err, errUnknownPackage):
		c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrHoldExpired),
		errors.Is(err, service.ErrBookingAlreadyHolds),
		errors.Is(err, repository.ErrBlockOverlap):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrReservationTimeout):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrAmbiguousAvailability):
		s.logger.Error("availability configuration error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})

	default:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
