package calendar

import (
	"errors"
	"math"
	"testing"
	"time"
)

func slotStrings(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
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

func TestSpanFor_NinetyMinutes(t *testing.T) {
	start := mustSlot(t, "2025-01-01", "09:00")

	// Повторные вызовы дают один и тот же результат.
	for i := 0; i < 3; i++ {
		span, err := SpanFor(start, 90)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"2025-01-01 09:00", "2025-01-01 09:30", "2025-01-01 10:00"}
		if got := slotStrings(span.Slots); !equalStrings(got, want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
		if span.CrossesMidnight() {
			t.Fatalf("span must not cross midnight")
		}
	}
}

func TestSpanFor_CrossMidnight(t *testing.T) {
	start := mustSlot(t, "2025-01-01", "23:30")

	span, err := SpanFor(start, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2025-01-01 23:30", "2025-01-02 00:00", "2025-01-02 00:30"}
	if got := slotStrings(span.Slots); !equalStrings(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !span.CrossesMidnight() {
		t.Fatalf("expected span to cross midnight")
	}
	if span.DayOffset(0) != 0 || span.DayOffset(1) != 1 || span.DayOffset(2) != 1 {
		t.Fatalf("unexpected day offsets")
	}
	dates := span.Dates()
	if len(dates) != 2 || dates[0].String() != "2025-01-01" || dates[1].String() != "2025-01-02" {
		t.Fatalf("unexpected dates %v", dates)
	}
}

func TestSpanFor_RoundsUpPartialSlot(t *testing.T) {
	start := mustSlot(t, "2025-01-01", "10:00")

	span, err := SpanFor(start, 45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if span.Len() != 2 {
		t.Fatalf("expected 2 slots for 45 minutes, got %d", span.Len())
	}
	// Конец услуги — точный, без округления.
	if !span.End().Equal(time.Date(2025, 1, 1, 10, 45, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %v", span.End())
	}
	if !span.OccupiedUntil().Equal(time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occupied end %v", span.OccupiedUntil())
	}
}

func TestSlotCount(t *testing.T) {
	cases := map[int]int{1: 1, 29: 1, 30: 1, 31: 2, 60: 2, 90: 3, 91: 4, 1440: 48}
	for minutes, want := range cases {
		got, err := SlotCount(minutes)
		if err != nil {
			t.Fatalf("SlotCount(%d): %v", minutes, err)
		}
		if got != want {
			t.Fatalf("SlotCount(%d) = %d, want %d", minutes, got, want)
		}
	}
}

func TestSpanFor_InvalidDuration(t *testing.T) {
	start := mustSlot(t, "2025-01-01", "10:00")
	for _, d := range []int{0, -30, MaxDurationMinutes + 1, 1 << 40, math.MaxInt} {
		if _, err := SpanFor(start, d); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("SpanFor(%d): expected ErrInvalidDuration, got %v", d, err)
		}
	}
}

func TestSlotCount_UpperBound(t *testing.T) {
	n, err := SlotCount(MaxDurationMinutes)
	if err != nil {
		t.Fatalf("SlotCount(max): %v", err)
	}
	if n != 7*SlotsPerDay {
		t.Fatalf("expected %d slots for a week, got %d", 7*SlotsPerDay, n)
	}
	for _, d := range []int{MaxDurationMinutes + 1, math.MaxInt} {
		if n, err := SlotCount(d); !errors.Is(err, ErrInvalidDuration) || n != 0 {
			t.Fatalf("SlotCount(%d) = %d, %v; want ErrInvalidDuration", d, n, err)
		}
	}
}
