package calendar

import (
	"errors"
	"fmt"
)

const MinutesPerDay = 24 * 60

var ErrInvalidClock = errors.New("invalid clock time")

// ClockRange: полуоткрытый интервал [Start, End) в минутах от полуночи
// внутри одних суток. End может быть равен 1440 (24:00).
type ClockRange struct {
	Start int
	End   int
}

// NewClockRange создаёт интервал и делает простую валидацию.
func NewClockRange(start, end int) (ClockRange, error) {
	if start < 0 || end > MinutesPerDay || end <= start {
		return ClockRange{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidTimeRange, FormatClock(start), FormatClock(end))
	}
	return ClockRange{Start: start, End: end}, nil
}

// ParseClockRange разбирает пару "ЧЧ:ММ".
func ParseClockRange(start, end string) (ClockRange, error) {
	s, err := ParseClock(start)
	if err != nil {
		return ClockRange{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return ClockRange{}, err
	}
	return NewClockRange(s, e)
}

// ParseClock разбирает "ЧЧ:ММ" в минуты от полуночи. В отличие от
// ParseTimeOfDay принимает любую минуту и "24:00" как конец суток.
func ParseClock(s string) (int, error) {
	hour, minute, err := parseHourMinute(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if hour == 24 && minute == 0 {
		return MinutesPerDay, nil
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return hour*60 + minute, nil
}

func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func (r ClockRange) Len() int {
	return r.End - r.Start
}

func (r ClockRange) String() string {
	return FormatClock(r.Start) + "-" + FormatClock(r.End)
}

// SlotRange: интервал, который занимает слот tod.
func SlotRange(tod TimeOfDay) ClockRange {
	return ClockRange{Start: tod.Minutes(), End: tod.Minutes() + SlotMinutes}
}

// HasOverlap проверяет, пересекается ли newRange с existing.
// Касание концами пересечением не считается.
func HasOverlap(newRange ClockRange, existing []ClockRange) (bool, []ClockRange) {
	var conflicts []ClockRange
	for _, r := range existing {
		if rangesOverlap(newRange, r) {
			conflicts = append(conflicts, r)
		}
	}
	return len(conflicts) > 0, conflicts
}

func rangesOverlap(a, b ClockRange) bool {
	return a.Start < b.End && b.Start < a.End
}
