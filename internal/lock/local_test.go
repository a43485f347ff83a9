package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/homefix/booking-core/internal/calendar"
)

func TestLocal_MutualExclusion(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, []string{"slot:a:2025-01-01"}, time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if len(l.regions) != 0 {
		t.Fatalf("expected regions to be cleaned up, got %d", len(l.regions))
	}
}

func TestLocal_Timeout(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx, []string{"k"}, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	start := time.Now()
	_, err = l.Acquire(ctx, []string{"k"}, 20*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("wait was not bounded")
	}
}

func TestLocal_ContextDeadlineIsTimeout(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), []string{"k"}, time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, []string{"k"}, time.Minute); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout on context deadline, got %v", err)
	}

	cctx, ccancel := context.WithCancel(context.Background())
	ccancel()
	if _, err := l.Acquire(cctx, []string{"k"}, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// Частичный захват откатывается: если второй ключ занят, первый свободен.
func TestLocal_AllOrNothing(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	holdB, err := l.Acquire(ctx, []string{"b"}, time.Second)
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	defer holdB()

	if _, err := l.Acquire(ctx, []string{"a", "b"}, 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	holdA, err := l.Acquire(ctx, []string{"a"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("a must be free after failed multi-key acquire: %v", err)
	}
	holdA()
}

// Ключи в разном порядке не приводят к взаимной блокировке.
func TestLocal_NoDeadlockOnReversedKeys(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 50; i++ {
		keys := []string{"x", "y"}
		if i%2 == 1 {
			keys = []string{"y", "x", "y"}
		}
		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			release, err := l.Acquire(ctx, keys, 2*time.Second)
			if err != nil {
				errs <- err
				return
			}
			release()
			release()
		}(keys)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSpanKeys(t *testing.T) {
	d, err := calendar.ParseDate("2025-01-01")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	start, err := calendar.NewSlot(d, "23:30")
	if err != nil {
		t.Fatalf("new slot: %v", err)
	}
	span, err := calendar.SpanFor(start, 90)
	if err != nil {
		t.Fatalf("span: %v", err)
	}

	id := uuid.MustParse("7d8f3c1e-0000-4000-8000-000000000001")
	keys := SpanKeys(id, span)
	want := []string{
		"slot:7d8f3c1e-0000-4000-8000-000000000001:2025-01-01",
		"slot:7d8f3c1e-0000-4000-8000-000000000001:2025-01-02",
	}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, keys)
	}
}
