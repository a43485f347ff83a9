package calendar

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDuration = errors.New("duration must be a positive number of minutes")

// MaxDurationMinutes: верхняя граница длительности одной брони (7 суток).
const MaxDurationMinutes = 7 * MinutesPerDay

// Span: упорядоченная последовательность слотов, которую занимает одна бронь.
type Span struct {
	Start           Slot
	DurationMinutes int
	Slots           []Slot
}

// SlotCount: сколько слотов занимает услуга. Неполный слот округляется
// вверх: частично занятый слот для другой брони уже не свободен.
func SlotCount(durationMinutes int) (int, error) {
	if durationMinutes <= 0 || durationMinutes > MaxDurationMinutes {
		return 0, fmt.Errorf("%w: %d (max %d)", ErrInvalidDuration, durationMinutes, MaxDurationMinutes)
	}
	return (durationMinutes + SlotMinutes - 1) / SlotMinutes, nil
}

// SpanFor строит спан от start длиной ceil(duration/30) слотов.
// Если спан переходит полночь, слоты следующих дат входят в него со своей датой.
func SpanFor(start Slot, durationMinutes int) (Span, error) {
	n, err := SlotCount(durationMinutes)
	if err != nil {
		return Span{}, err
	}
	return Span{
		Start:           start,
		DurationMinutes: durationMinutes,
		Slots:           SlotsBetween(start, n),
	}, nil
}

func (s Span) Len() int {
	return len(s.Slots)
}

// End: точное окончание услуги (start + duration), без округления до слота.
func (s Span) End() time.Time {
	return s.Start.Start().Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// OccupiedUntil: конец последнего занятого слота.
func (s Span) OccupiedUntil() time.Time {
	if len(s.Slots) == 0 {
		return s.Start.Start()
	}
	return s.Slots[len(s.Slots)-1].End()
}

// Dates: различные даты, которые задевает спан, по возрастанию.
func (s Span) Dates() []Date {
	var dates []Date
	for _, slot := range s.Slots {
		if len(dates) == 0 || dates[len(dates)-1] != slot.Date {
			dates = append(dates, slot.Date)
		}
	}
	return dates
}

// CrossesMidnight: продолжается ли спан на следующие даты.
func (s Span) CrossesMidnight() bool {
	return len(s.Slots) > 0 && s.Slots[len(s.Slots)-1].Date != s.Start.Date
}

// DayOffset: на какой день относительно даты начала попадает i-й слот.
func (s Span) DayOffset(i int) int {
	return s.Start.Date.DaysUntil(s.Slots[i].Date)
}
