package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// SlotMinutes: длительность одного слота сетки.
	SlotMinutes = 30
	// SlotsPerDay: количество слотов в сутках (00:00 … 23:30).
	SlotsPerDay = 24 * 60 / SlotMinutes
)

// ErrInvalidSlotBoundary: время не лежит на границе 30-минутной сетки.
var ErrInvalidSlotBoundary = errors.New("invalid slot boundary")

// TimeOfDay: начало слота внутри суток. Значение можно получить только
// через конструкторы, поэтому невыровненное время дальше по коду
// непредставимо. Нулевое значение — 00:00.
type TimeOfDay struct {
	index uint8
}

// NewTimeOfDay проверяет, что hour в [0,23], а minute равен 0 или 30.
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || (minute != 0 && minute != SlotMinutes) {
		return TimeOfDay{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidSlotBoundary, hour, minute)
	}
	return TimeOfDay{index: uint8(hour*2 + minute/SlotMinutes)}, nil
}

// TimeOfDayFromIndex возвращает слот с порядковым номером i (0 — 00:00, 47 — 23:30).
func TimeOfDayFromIndex(i int) (TimeOfDay, error) {
	if i < 0 || i >= SlotsPerDay {
		return TimeOfDay{}, fmt.Errorf("%w: index %d", ErrInvalidSlotBoundary, i)
	}
	return TimeOfDay{index: uint8(i)}, nil
}

// ParseTimeOfDay разбирает "ЧЧ:ММ" (допускается "ЧЧ:ММ:00" из TIME-колонок).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hour, minute, err := parseHourMinute(s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidSlotBoundary, s)
	}
	return NewTimeOfDay(hour, minute)
}

// MustTimeOfDay: для констант и тестов.
func MustTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

func parseHourMinute(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 3 {
		if parts[2] != "00" {
			return 0, 0, errors.New("seconds are not supported")
		}
		parts = parts[:2]
	}
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, 0, errors.New("expected HH:MM")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

func (t TimeOfDay) Index() int   { return int(t.index) }
func (t TimeOfDay) Hour() int    { return int(t.index) / 2 }
func (t TimeOfDay) Minute() int  { return int(t.index) % 2 * SlotMinutes }
func (t TimeOfDay) Minutes() int { return int(t.index) * SlotMinutes }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Value хранит время как "ЧЧ:ММ".
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		s = v.Format("15:04")
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Slot: позиция на сетке: дата и начало 30-минутного интервала.
// Провайдер в идентичность слота не входит, его передают рядом.
type Slot struct {
	Date Date      `json:"date"`
	Time TimeOfDay `json:"start_time"`
}

// NewSlot валидирует время до любых обращений к хранилищу.
func NewSlot(date Date, hhmm string) (Slot, error) {
	if date.IsZero() {
		return Slot{}, ErrInvalidDate
	}
	tod, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Date: date, Time: tod}, nil
}

func (s Slot) Start() time.Time {
	return s.Date.At(s.Time)
}

func (s Slot) End() time.Time {
	return s.Start().Add(SlotMinutes * time.Minute)
}

// Advance возвращает слот на n позиций позже (n < 0 — раньше),
// с переходом через полночь на соседние даты.
func (s Slot) Advance(n int) Slot {
	total := s.Time.Index() + n
	days := total / SlotsPerDay
	idx := total % SlotsPerDay
	if idx < 0 {
		idx += SlotsPerDay
		days--
	}
	return Slot{Date: s.Date.AddDays(days), Time: TimeOfDay{index: uint8(idx)}}
}

// SlotsBetween: count подряд идущих слотов, начиная со start.
func SlotsBetween(start Slot, count int) []Slot {
	if count <= 0 {
		return []Slot{}
	}
	slots := make([]Slot, count)
	for i := range slots {
		slots[i] = start.Advance(i)
	}
	return slots
}

// Compare возвращает -1, 0 или 1.
func (s Slot) Compare(other Slot) int {
	switch {
	case s.Date.Before(other.Date):
		return -1
	case s.Date.After(other.Date):
		return 1
	case s.Time.index < other.Time.index:
		return -1
	case s.Time.index > other.Time.index:
		return 1
	default:
		return 0
	}
}

func (s Slot) Before(other Slot) bool {
	return s.Compare(other) < 0
}

func (s Slot) String() string {
	return s.Date.String() + " " + s.Time.String()
}
