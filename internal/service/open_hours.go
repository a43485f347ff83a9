package service

import (
	"sort"

	"github.com/homefix/booking-core/internal/calendar"
	"github.com/homefix/booking-core/internal/model"
)

// dayHours — открытые минуты одной даты.
type dayHours [calendar.MinutesPerDay]bool

// slotOpen — слот открыт, только если открыты все его 30 минут.
func (h *dayHours) slotOpen(tod calendar.TimeOfDay) bool {
	r := calendar.SlotRange(tod)
	for m := r.Start; m < r.End; m++ {
		if !h[m] {
			return false
		}
	}
	return true
}

// ranges сворачивает открытые минуты в интервалы.
func (h *dayHours) ranges() []calendar.ClockRange {
	var out []calendar.ClockRange
	start := -1
	for m := 0; m <= calendar.MinutesPerDay; m++ {
		open := m < calendar.MinutesPerDay && h[m]
		switch {
		case open && start < 0:
			start = m
		case !open && start >= 0:
			out = append(out, calendar.ClockRange{Start: start, End: m})
			start = -1
		}
	}
	return out
}

type resolvedBlock struct {
	rng       calendar.ClockRange
	available bool
}

// resolveOpenHours вычисляет открытые минуты провайдера на дату.
//
// Блоки применяются от самого узкого к самому широкому: каждый решает
// только минуты, которые не решил более узкий блок. Минуты, которые не
// решил ни один блок, берутся из рабочих часов. Два пересекающихся блока
// одной ширины — неоднозначность.
func resolveOpenHours(provider *model.Provider, date calendar.Date, blocks []model.AvailabilityBlock) (*dayHours, error) {
	working, works, err := provider.WorkingHours()
	if err != nil {
		return nil, err
	}

	resolved := make([]resolvedBlock, 0, len(blocks))
	for i := range blocks {
		if blocks[i].ProviderID != provider.ID || blocks[i].Date() != date {
			continue
		}
		r, err := blocks[i].Range()
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, resolvedBlock{rng: r, available: blocks[i].Available})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		if resolved[i].rng.Len() != resolved[j].rng.Len() {
			return resolved[i].rng.Len() < resolved[j].rng.Len()
		}
		return resolved[i].rng.Start < resolved[j].rng.Start
	})

	if ambiguous := sameWidthOverlaps(resolved); len(ambiguous) > 0 {
		return nil, &AmbiguousAvailabilityError{ProviderID: provider.ID, Date: date, Ranges: ambiguous}
	}

	var (
		hours   dayHours
		decided [calendar.MinutesPerDay]bool
	)
	for _, b := range resolved {
		for m := b.rng.Start; m < b.rng.End; m++ {
			if decided[m] {
				continue
			}
			decided[m] = true
			hours[m] = b.available
		}
	}
	if works {
		for m := working.Start; m < working.End; m++ {
			if !decided[m] {
				hours[m] = true
			}
		}
	}
	return &hours, nil
}

// sameWidthOverlaps ищет пересечения внутри групп одинаковой ширины.
// blocks отсортированы по ширине, затем по началу.
func sameWidthOverlaps(blocks []resolvedBlock) []calendar.ClockRange {
	var out []calendar.ClockRange
	for i := 0; i < len(blocks); {
		j := i
		for j < len(blocks) && blocks[j].rng.Len() == blocks[i].rng.Len() {
			j++
		}
		for k := i + 1; k < j; k++ {
			prev, cur := blocks[k-1].rng, blocks[k].rng
			if cur.Start < prev.End {
				out = appendRange(out, prev)
				out = appendRange(out, cur)
			}
		}
		i = j
	}
	return out
}

func appendRange(ranges []calendar.ClockRange, r calendar.ClockRange) []calendar.ClockRange {
	for _, have := range ranges {
		if have == r {
			return ranges
		}
	}
	return append(ranges, r)
}
