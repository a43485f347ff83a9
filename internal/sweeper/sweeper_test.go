package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeExpirer struct {
	calls int32
	ids   []uuid.UUID
	err   error
	last  atomic.Value
}

func (f *fakeExpirer) ExpireStaleHolds(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	atomic.AddInt32(&f.calls, 1)
	f.last.Store(now)
	return f.ids, f.err
}

func TestRunOnce(t *testing.T) {
	fake := &fakeExpirer{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	s := New(fake, "@every 1m", zap.NewNop())
	fixed := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, err := s.RunOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 expired, got %d (%v)", n, err)
	}
	if got := fake.last.Load().(time.Time); !got.Equal(fixed) {
		t.Fatalf("expected sweep at %v, got %v", fixed, got)
	}

	fake.err = errors.New("db down")
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestRun_FiresOnSchedule(t *testing.T) {
	fake := &fakeExpirer{}
	s := New(fake, "@every 1s", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for atomic.LoadInt32(&fake.calls) == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("sweep never ran")
		}
		time.Sleep(50 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}

func TestValidateSchedule(t *testing.T) {
	for _, ok := range []string{"@every 1m", "*/5 * * * *", "@hourly"} {
		if err := ValidateSchedule(ok); err != nil {
			t.Fatalf("%q: unexpected error %v", ok, err)
		}
	}
	if err := ValidateSchedule("every minute"); err == nil {
		t.Fatalf("expected error for invalid schedule")
	}
	s := New(&fakeExpirer{}, "nope", zap.NewNop())
	if err := s.Run(context.Background()); err == nil {
		t.Fatalf("Run must reject an invalid schedule")
	}
}
