package httpapi

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
)

type slotJSON struct {
	Date      calendar.Date      `json:"date"`
	StartTime calendar.TimeOfDay `json:"start_time"`
}

func toSlotJSON(slots []calendar.Slot) []slotJSON {
	out := make([]slotJSON, len(slots))
	for i, s := range slots {
		out[i] = slotJSON{Date: s.Date, StartTime: s.Time}
	}
	return out
}

type availableSlotJSON struct {
	StartTime       calendar.TimeOfDay `json:"start_time"`
	DurationMinutes int                `json:"duration_minutes"`
}

type availabilityResponse struct {
	ProviderID     uuid.UUID           `json:"provider_id"`
	Date           calendar.Date       `json:"date"`
	RequiredSlots  int                 `json:"required_slots"`
	AvailableSlots []availableSlotJSON `json:"available_slots"`
}

type claimJSON struct {
	Date       calendar.Date      `json:"date"`
	StartTime  calendar.TimeOfDay `json:"start_time"`
	Status     model.ClaimStatus  `json:"status"`
	ReleasedAt *time.Time         `json:"released_at,omitempty"`
}

func toClaimJSON(claims []model.SlotClaim) []claimJSON {
	out := make([]claimJSON, len(claims))
	for i := range claims {
		slot := claims[i].Slot()
		out[i] = claimJSON{
			Date:       slot.Date,
			StartTime:  slot.Time,
			Status:     claims[i].Status,
			ReleasedAt: claims[i].ReleasedAt,
		}
	}
	return out
}

type bookingJSON struct {
	ID              uuid.UUID           `json:"id"`
	ProviderID      uuid.UUID           `json:"provider_id"`
	PackageID       *uuid.UUID          `json:"package_id,omitempty"`
	Date            calendar.Date       `json:"date"`
	StartTime       calendar.TimeOfDay  `json:"start_time"`
	DurationMinutes int                 `json:"duration_minutes"`
	EndsAt          time.Time           `json:"ends_at"`
	Status          model.BookingStatus `json:"status"`
	HoldExpiresAt   *time.Time          `json:"hold_expires_at,omitempty"`
	ConfirmedAt     *time.Time          `json:"confirmed_at,omitempty"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	Claims          []claimJSON         `json:"claims,omitempty"`
}

func toBookingJSON(b *model.Booking) bookingJSON {
	start := b.StartSlot()
	return bookingJSON{
		ID:              b.ID,
		ProviderID:      b.ProviderID,
		PackageID:       b.PackageID,
		Date:            start.Date,
		StartTime:       start.Time,
		DurationMinutes: b.DurationMin,
		EndsAt:          start.Start().Add(time.Duration(b.DurationMin) * time.Minute),
		Status:          b.Status,
		HoldExpiresAt:   b.HoldExpiresAt,
		ConfirmedAt:     b.ConfirmedAt,
		CompletedAt:     b.CompletedAt,
		CancelledAt:     b.CancelledAt,
		CancelReason:    b.CancelReason,
	}
}

type providerJSON struct {
	ID                uuid.UUID `json:"id"`
	DisplayName       string    `json:"display_name"`
	WorkingHoursStart string    `json:"working_hours_start"`
	WorkingHoursEnd   string    `json:"working_hours_end"`
}

func toProviderJSON(p *model.Provider) providerJSON {
	return providerJSON{
		ID:                p.ID,
		DisplayName:       p.DisplayName,
		WorkingHoursStart: p.WorkingHoursStart,
		WorkingHoursEnd:   p.WorkingHoursEnd,
	}
}

type blockJSON struct {
	ID        uuid.UUID     `json:"id"`
	Date      calendar.Date `json:"date"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	Available bool          `json:"available"`
	Reason    string        `json:"reason,omitempty"`
}

func toBlockJSON(b *model.AvailabilityBlock) blockJSON {
	return blockJSON{
		ID:        b.ID,
		Date:      b.Date(),
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Available: b.Available,
		Reason:    b.Reason,
	}
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", errBadRequest, field)
	}
	return id, nil
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	return parseUUID(c.Param("id"), "id")
}

func queryInt(c *gin.Context, key string) (int, bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return v, true, nil
}
