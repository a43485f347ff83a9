package lock

import (
	"context"
	"sync"
	"time"
)

// Local — Locker внутри процесса. Годится для одного экземпляра сервиса;
// если экземпляров несколько, нужен Redis.
type Local struct {
	mu      sync.Mutex
	regions map[string]*region
}

type region struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{regions: make(map[string]*region)}
}

func (l *Local) Acquire(ctx context.Context, keys []string, wait time.Duration) (Release, error) {
	keys = normalize(keys)
	timer := time.NewTimer(waitOrDefault(wait))
	defer timer.Stop()

	held := make([]*region, 0, len(keys))
	for _, key := range keys {
		r := l.ref(key)
		select {
		case r.sem <- struct{}{}:
			held = append(held, r)
		case <-ctx.Done():
			l.unref(key, r)
			l.release(keys, held)
			return nil, contextErr(ctx)
		case <-timer.C:
			l.unref(key, r)
			l.release(keys, held)
			return nil, ErrTimeout
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(keys, held) })
	}, nil
}

func (l *Local) ref(key string) *region {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.regions[key]
	if !ok {
		r = &region{sem: make(chan struct{}, 1)}
		l.regions[key] = r
	}
	r.refs++
	return r
}

func (l *Local) unref(key string, r *region) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.refs--
	if r.refs == 0 {
		delete(l.regions, key)
	}
}

// held[i] соответствует keys[i].
func (l *Local) release(keys []string, held []*region) {
	for i := len(held) - 1; i >= 0; i-- {
		<-held[i].sem
		l.unref(keys[i], held[i])
	}
}
