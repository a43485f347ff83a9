package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/db"
	"github.com/homefix/booking-core/internal/lock"
	"github.com/homefix/booking-core/internal/model"
	"github.com/homefix/booking-core/internal/repository"
)

type testEnv struct {
	db           *gorm.DB
	locker       *lock.Local
	claims       *repository.GormClaimRepository
	events       *repository.GormEventRepository
	availability *AvailabilityService
	reservations *ReservationService
	bookings     *BookingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

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
	providers := repository.NewGormProviderRepository(gdb)
	blocks := repository.NewGormAvailabilityRepository(gdb)
	claims := repository.NewGormClaimRepository(gdb)
	events := repository.NewGormEventRepository(gdb)
	locker := lock.NewLocal()

	reservations := NewReservationService(gdb, providers, blocks, claims, locker,
		ReservationOptions{LockWait: 2 * time.Second}, logger)

	return &testEnv{
		db:           gdb,
		locker:       locker,
		claims:       claims,
		events:       events,
		availability: NewAvailabilityService(gdb, providers, blocks, claims, 2*time.Second, logger),
		reservations: reservations,
		bookings: NewBookingService(gdb, repository.NewGormBookingRepository(gdb), events,
			reservations, 15*time.Minute, 100, logger),
	}
}

func (e *testEnv) provider(t *testing.T, start, end string) uuid.UUID {
	t.Helper()
	p := &model.Provider{DisplayName: "Plumber", WorkingHoursStart: start, WorkingHoursEnd: end}
	if err := e.db.Create(p).Error; err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return p.ID
}

// block пишет блок напрямую, в обход проверок репозитория.
func (e *testEnv) block(t *testing.T, providerID uuid.UUID, date, start, end string, available bool) {
	t.Helper()
	b := &model.AvailabilityBlock{
		ProviderID: providerID,
		BlockDate:  model.ToDate(mustDate(t, date)),
		StartTime:  start,
		EndTime:    end,
		Available:  available,
	}
	if err := e.db.Create(b).Error; err != nil {
		t.Fatalf("create block: %v", err)
	}
}

func (e *testEnv) activeClaims(t *testing.T, providerID uuid.UUID, dates ...string) []model.SlotClaim {
	t.Helper()
	ds := make([]calendar.Date, len(dates))
	for i, d := range dates {
		ds[i] = mustDate(t, d)
	}
	claims, err := e.claims.ListActiveByProviderDates(context.Background(), providerID, ds)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	return claims
}

func mustDate(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func mustSlot(t *testing.T, date, hhmm string) calendar.Slot {
	t.Helper()
	s, err := calendar.NewSlot(mustDate(t, date), hhmm)
	if err != nil {
		t.Fatalf("new slot %s %s: %v", date, hhmm, err)
	}
	return s
}

func slotStrings(slots []calendar.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}

func claimStrings(claims []model.SlotClaim) []string {
	out := make([]string, len(claims))
	for i := range claims {
		out[i] = claims[i].Slot().String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
