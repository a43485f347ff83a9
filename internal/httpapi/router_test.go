package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/db"
	"github.com/homefix/booking-core/internal/lock"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/repository"
	"github.com/homefix/booking-core/internal/service"
)

const day = "2025-01-01"

type testAPI struct {
	router     http.Handler
	packages   *repository.GormPackageRepository
	providerID uuid.UUID
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	logger := zap.NewNop()
	providerRepo := repository.NewGormProviderRepository(gdb)
	blocks := repository.NewGormAvailabilityRepository(gdb)
	claims := repository.NewGormClaimRepository(gdb)
	packages := repository.NewGormPackageRepository(gdb)

	reservations := service.NewReservationService(gdb, providerRepo, blocks, claims, lock.NewLocal(),
		service.ReservationOptions{LockWait: time.Second}, logger)
	providers := service.NewProviderService(providerRepo, blocks, logger)

	p, err := providers.Create(context.Background(), "Plumber", "09:00", "17:00")
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}

	router := NewRouter(Deps{
		Availability: service.NewAvailabilityService(gdb, providerRepo, blocks, claims, 2*time.Second, logger),
		Bookings: service.NewBookingService(gdb, repository.NewGormBookingRepository(gdb),
			repository.NewGormEventRepository(gdb), reservations, 15*time.Minute, 100, logger),
		Providers: providers,
		Packages:  packages,
		Ping: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, opts, logger)

	return &testAPI{router: router, packages: packages, providerID: p.ID}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal %q: %v", rec.Body.String(), err)
	}
	return out
}

func (a *testAPI) reserve(t *testing.T, bookingID uuid.UUID, start string, minutes int) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"provider_id":              a.providerID.String(),
		"booking_id":               bookingID.String(),
		"date":                     day,
		"start_time":               start,
		"package_duration_minutes": minutes,
	})
}

//
// 1. Доступность
//

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, Options{})
	rec := api.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestGetAvailability(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/availability?provider_id=%s&date=%s&duration_minutes=60", api.providerID, day), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[availabilityResponse](t, rec)
	if resp.RequiredSlots != 2 || len(resp.AvailableSlots) != 15 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.AvailableSlots[0].StartTime.String() != "09:00" || resp.AvailableSlots[0].DurationMinutes != 60 {
		t.Fatalf("unexpected first slot %+v", resp.AvailableSlots[0])
	}
}

func TestGetAvailability_ByPackage(t *testing.T) {
	api := newTestAPI(t, Options{})
	pkg := &model.ServicePackage{Name: "Deep cleaning", DurationMin: 90, IsActive: true}
	if err := api.packages.Create(context.Background(), pkg); err != nil {
		t.Fatalf("create package: %v", err)
	}

	rec := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/availability?provider_id=%s&date=%s&package_id=%s", api.providerID, day, pkg.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[availabilityResponse](t, rec)
	if resp.RequiredSlots != 3 || len(resp.AvailableSlots) != 14 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetAvailability_Errors(t *testing.T) {
	api := newTestAPI(t, Options{})

	cases := map[string]int{
		"/api/v1/availability?date=" + day + "&duration_minutes=60":                                                        http.StatusBadRequest,
		"/api/v1/availability?provider_id=" + api.providerID.String() + "&date=2025-13-01&duration_minutes=60":             http.StatusBadRequest,
		"/api/v1/availability?provider_id=" + api.providerID.String() + "&date=" + day:                                     http.StatusBadRequest,
		"/api/v1/availability?provider_id=" + api.providerID.String() + "&date=" + day + "&duration_minutes=0":             http.StatusBadRequest,
		"/api/v1/availability?provider_id=" + uuid.NewString() + "&date=" + day + "&duration_minutes=60":                   http.StatusNotFound,
		"/api/v1/availability?provider_id=" + api.providerID.String() + "&date=" + day + "&package_id=" + uuid.NewString(): http.StatusNotFound,
	}
	for path, want := range cases {
		if rec := api.do(t, http.MethodGet, path, nil); rec.Code != want {
			t.Fatalf("GET %s: expected %d, got %d body=%s", path, want, rec.Code, rec.Body.String())
		}
	}
}

//
// 2. Резервирование
//

func TestCreateReservation_ThenConflict(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.reserve(t, uuid.New(), "10:00", 60)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	created := decode[reservationResponse](t, rec)
	if created.Booking.Status != model.BookingStatusHeld || len(created.Claims) != 2 {
		t.Fatalf("unexpected reservation %+v", created)
	}

	rec = api.reserve(t, uuid.New(), "09:30", 90)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rec.Code, rec.Body.String())
	}
	conflict := decode[conflictResponse](t, rec)
	if len(conflict.ConflictingSlots) != 2 {
		t.Fatalf("expected 2 conflicting slots, got %+v", conflict.ConflictingSlots)
	}
	first := conflict.ConflictingSlots[0]
	if first.Date.String() != day || first.StartTime.String() != "10:00" {
		t.Fatalf("unexpected conflicting slot %+v", first)
	}
}

func TestCreateReservation_InvalidInput(t *testing.T) {
	api := newTestAPI(t, Options{})

	if rec := api.reserve(t, uuid.New(), "09:15", 60); rec.Code != http.StatusBadRequest {
		t.Fatalf("off-boundary start: expected 400, got %d", rec.Code)
	}
	if rec := api.reserve(t, uuid.New(), "09:00", -15); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative duration: expected 400, got %d", rec.Code)
	}
	rec := api.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{"date": day})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400, got %d", rec.Code)
	}
}

func TestCreateReservation_DurationAboveLimit(t *testing.T) {
	api := newTestAPI(t, Options{})

	for _, d := range []int{calendar.MaxDurationMinutes + 1, math.MaxInt} {
		bookingID := uuid.New()
		if rec := api.reserve(t, bookingID, "10:00", d); rec.Code != http.StatusBadRequest {
			t.Fatalf("duration %d: expected 400, got %d body=%s", d, rec.Code, rec.Body.String())
		}
		if rec := api.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID.String(), nil); rec.Code != http.StatusNotFound {
			t.Fatalf("duration %d: booking must not exist, got %d", d, rec.Code)
		}
		path := fmt.Sprintf("/api/v1/availability?provider_id=%s&date=%s&duration_minutes=%d", api.providerID, day, d)
		if rec := api.do(t, http.MethodGet, path, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("availability %d: expected 400, got %d", d, rec.Code)
		}
	}
}

func TestCreateReservation_ReportsSpanEnd(t *testing.T) {
	api := newTestAPI(t, Options{})

	rec := api.reserve(t, uuid.New(), "10:00", 45)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	resp := decode[reservationResponse](t, rec)
	if !resp.EndsAt.Equal(time.Date(2025, 1, 1, 10, 45, 0, 0, time.UTC)) {
		t.Fatalf("unexpected ends_at %v", resp.EndsAt)
	}
	if !resp.OccupiedUntil.Equal(time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occupied_until %v", resp.OccupiedUntil)
	}
}

func TestReleaseBooking_Idempotent(t *testing.T) {
	api := newTestAPI(t, Options{})
	bookingID := uuid.New()

	if rec := api.reserve(t, bookingID, "10:00", 60); rec.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", rec.Code, rec.Body.String())
	}
	for i := 0; i < 2; i++ {
		rec := api.do(t, http.MethodPost, "/api/v1/bookings/"+bookingID.String()+"/release", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("release #%d: expected 200, got %d body=%s", i+1, rec.Code, rec.Body.String())
		}
	}

	rec := api.do(t, http.MethodGet, "/api/v1/bookings/"+bookingID.String(), nil)
	got := decode[bookingJSON](t, rec)
	if got.Status != model.BookingStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	for _, c := range got.Claims {
		if c.Status != model.ClaimStatusReleased {
			t.Fatalf("claim %s not released", c.StartTime)
		}
	}

	// Освободили — можно занять снова.
	if rec := api.reserve(t, uuid.New(), "10:00", 60); rec.Code != http.StatusCreated {
		t.Fatalf("reserve after release: %d %s", rec.Code, rec.Body.String())
	}
	// Неизвестная бронь — тоже 200.
	if rec := api.do(t, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/release", nil); rec.Code != http.StatusOK {
		t.Fatalf("unknown booking release: expected 200, got %d", rec.Code)
	}
}

//
// 3. Жизненный цикл
//

func TestBookingLifecycle(t *testing.T) {
	api := newTestAPI(t, Options{})
	bookingID := uuid.New()
	base := "/api/v1/bookings/" + bookingID.String()

	if rec := api.reserve(t, bookingID, "13:00", 60); rec.Code != http.StatusCreated {
		t.Fatalf("reserve: %d %s", rec.Code, rec.Body.String())
	}

	rec := api.do(t, http.MethodPost, base+"/confirm", nil)
	if rec.Code != http.StatusOK || decode[bookingJSON](t, rec).Status != model.BookingStatusConfirmed {
		t.Fatalf("confirm: %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, base+"/complete", nil)
	if rec.Code != http.StatusOK || decode[bookingJSON](t, rec).Status != model.BookingStatusCompleted {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, base+"/cancel", map[string]string{"reason": "late"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("cancel completed: expected 409, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/fail", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown booking: expected 404, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: expected 400, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/providers/%s/bookings?date=%s", api.providerID, day), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list bookings: %d %s", rec.Code, rec.Body.String())
	}
	list := decode[struct {
		Items []bookingJSON `json:"items"`
		Page  pageMeta      `json:"page"`
	}](t, rec)
	if len(list.Items) != 1 || list.Page.Total != 1 || list.Page.HasNext {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestExpireHolds(t *testing.T) {
	api := newTestAPI(t, Options{})
	rec := api.do(t, http.MethodPost, "/api/v1/holds/expire", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["count"] != float64(0) {
		t.Fatalf("unexpected body %v", body)
	}
}

//
// 4. Провайдеры
//

func TestProviderEndpoints(t *testing.T) {
	api := newTestAPI(t, Options{})
	base := "/api/v1/providers/" + api.providerID.String()

	rec := api.do(t, http.MethodPost, base+"/blocks", map[string]any{
		"date": day, "start_time": "12:00", "end_time": "13:00", "available": false, "reason": "lunch",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create block: %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPost, base+"/blocks", map[string]any{
		"date": day, "start_time": "12:30", "end_time": "13:30",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlapping block: expected 409, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, base+"/schedule?date="+day, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("schedule: %d %s", rec.Code, rec.Body.String())
	}
	schedule := decode[struct {
		Slots []service.ScheduleSlot `json:"slots"`
	}](t, rec)
	if len(schedule.Slots) != calendar.SlotsPerDay {
		t.Fatalf("expected 48 slots, got %d", len(schedule.Slots))
	}
	if schedule.Slots[24].State != service.SlotStateUnavailable {
		t.Fatalf("12:00 must be unavailable, got %s", schedule.Slots[24].State)
	}

	rec = api.do(t, http.MethodPut, base+"/working-hours", map[string]string{"start": "08:00", "end": "12:00"})
	if rec.Code != http.StatusOK || decode[providerJSON](t, rec).WorkingHoursStart != "08:00" {
		t.Fatalf("working hours: %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodPut, base+"/working-hours", map[string]string{"start": "08:15", "end": "07:00"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid hours: expected 400, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodPost, "/api/v1/providers", map[string]string{"display_name": "Painter"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create provider: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[providerJSON](t, rec)
	if rec := api.do(t, http.MethodGet, "/api/v1/providers/"+created.ID.String(), nil); rec.Code != http.StatusOK {
		t.Fatalf("get provider: %d", rec.Code)
	}
}

//
// 5. Обвязка
//

func TestWriteError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{logger: zap.NewNop()}

	cases := []struct {
		err  error
		want int
	}{
		{calendar.ErrInvalidSlotBoundary, http.StatusBadRequest},
		{calendar.ErrInvalidDuration, http.StatusBadRequest},
		{service.ErrUnknownProvider, http.StatusNotFound},
		{service.ErrUnknownBooking, http.StatusNotFound},
		{&service.ConflictError{}, http.StatusConflict},
		{&service.TransitionError{From: model.BookingStatusCompleted, Event: "cancel"}, http.StatusConflict},
		{service.ErrHoldExpired, http.StatusConflict},
		{&service.AmbiguousAvailabilityError{}, http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", service.ErrReservationTimeout), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		s.writeError(c, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
		if tc.want == http.StatusServiceUnavailable && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("timeout response must carry Retry-After")
		}
	}
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, Options{MaxRequestsPerMin: 1})
	path := fmt.Sprintf("/api/v1/providers/%s", api.providerID)

	if rec := api.do(t, http.MethodGet, path, nil); rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, path, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(recovery(zap.NewNop()))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
