package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/service"
)

type providerRequest struct {
	DisplayName       string `json:"display_name" binding:"required"`
	WorkingHoursStart string `json:"working_hours_start"`
	WorkingHoursEnd   string `json:"working_hours_end"`
}

func (s *Server) createProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	p, err := s.Providers.Create(c.Request.Context(), req.DisplayName, req.WorkingHoursStart, req.WorkingHoursEnd)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProviderJSON(p))
}

func (s *Server) getProvider(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	p, err := s.Providers.Get(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProviderJSON(p))
}

type workingHoursRequest struct {
	Start string `json:"start" binding:"required"`
	End   string `json:"end" binding:"required"`
}

func (s *Server) setWorkingHours(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req workingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	p, err := s.Providers.SetWorkingHours(c.Request.Context(), id, req.Start, req.End)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProviderJSON(p))
}

// GET /api/v1/providers/:id/schedule?date= — все слоты дня с состоянием.
func (s *Server) getSchedule(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	date, err := calendar.ParseDate(c.Query("date"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	slots, err := s.Availability.DaySchedule(c.Request.Context(), id, date)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider_id": id, "date": date, "slots": slots})
}

type blockRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

func (s *Server) createBlock(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		s.writeError(c, err)
		return
	}
	block, err := s.Providers.AddBlock(c.Request.Context(), id, service.NewBlock{
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Available: req.Available,
		Reason:    req.Reason,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBlockJSON(block))
}

func (s *Server) listBlocks(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	date, err := calendar.ParseDate(c.Query("date"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	blocks, err := s.Providers.Blocks(c.Request.Context(), id, date)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]blockJSON, 0, len(blocks))
	for i := range blocks {
		out = append(out, toBlockJSON(&blocks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"blocks": out})
}

// GET /api/v1/providers/:id/bookings?date=&page=&page_size=
func (s *Server) listBookings(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	date, err := calendar.ParseDate(c.Query("date"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	page, size, err := pageParams(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	bookings, total, err := s.Bookings.ListByProviderAndDate(c.Request.Context(), id, date, size, (page-1)*size)
	if err != nil {
		s.writeError(c, err)
		return
	}
	items := make([]bookingJSON, 0, len(bookings))
	for i := range bookings {
		items = append(items, toBookingJSON(&bookings[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "page": newPageMeta(page, size, total)})
}
