// Package lock — взаимоисключающие области, которые упорядочивают
// резервирование слотов по паре (провайдер, дата).
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/homefix/booking-core/internal/calendar"
)

// ErrTimeout: область не удалось захватить за отведённое время.
var ErrTimeout = errors.New("lock wait timed out")

// DefaultWait: ожидание, если вызывающий передал wait <= 0.
const DefaultWait = 5 * time.Second

// Release освобождает всё, что захватил один вызов Acquire.
type Release func()

// Locker захватывает несколько областей сразу: все или ни одной.
type Locker interface {
	Acquire(ctx context.Context, keys []string, wait time.Duration) (Release, error)
}

// SlotKey: ключ области, охраняющей занятия провайдера на одну дату.
func SlotKey(providerID uuid.UUID, date calendar.Date) string {
	return "slot:" + providerID.String() + ":" + date.String()
}

// SpanKeys: отсортированные ключи всех дат, которые задевает спан.
func SpanKeys(providerID uuid.UUID, span calendar.Span) []string {
	dates := span.Dates()
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		keys = append(keys, SlotKey(providerID, d))
	}
	return normalize(keys)
}

// normalize сортирует и убирает дубли: параллельные захваты нескольких
// ключей всегда идут в одном порядке, без взаимных блокировок.
func normalize(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	j := 0
	for i, k := range out {
		if i > 0 && k == out[j-1] {
			continue
		}
		out[j] = k
		j++
	}
	return out[:j]
}

func waitOrDefault(wait time.Duration) time.Duration {
	if wait <= 0 {
		return DefaultWait
	}
	return wait
}

func contextErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	return ctx.Err()
}
