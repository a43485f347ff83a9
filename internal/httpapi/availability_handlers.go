package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
)

// GET /api/v1/availability?provider_id=&date=&package_id=|duration_minutes=
func (s *Server) getAvailability(c *gin.Context) {
	providerID, err := parseUUID(c.Query("provider_id"), "provider_id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	date, err := calendar.ParseDate(c.Query("date"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	duration, given, err := queryInt(c, "duration_minutes")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !given {
		duration, err = s.packageDuration(c, c.Query("package_id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
	}
	required, err := calendar.SlotCount(duration)
	if err != nil {
		s.writeError(c, err)
		return
	}

	starts, err := s.Availability.AvailableStarts(c.Request.Context(), providerID, date, duration)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := availabilityResponse{
		ProviderID:     providerID,
		Date:           date,
		RequiredSlots:  required,
		AvailableSlots: make([]availableSlotJSON, 0, len(starts)),
	}
	for _, st := range starts {
		resp.AvailableSlots = append(resp.AvailableSlots, availableSlotJSON{StartTime: st.Time, DurationMinutes: duration})
	}
	c.JSON(http.StatusOK, resp)
}

// packageDuration — длительность услуги из пакета.
func (s *Server) packageDuration(c *gin.Context, raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: package_id or duration_minutes is required", errBadRequest)
	}
	packageID, err := parseUUID(raw, "package_id")
	if err != nil {
		return 0, err
	}
	if s.Packages == nil {
		return 0, fmt.Errorf("%w: %s", errUnknownPackage, packageID)
	}
	pkg, err := s.Packages.GetByID(c.Request.Context(), packageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", errUnknownPackage, packageID)
		}
		return 0, err
	}
	return pkg.DurationMin, nil
}
