// Package sweeper периодически снимает истёкшие удержания.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Expirer interface {
	ExpireStaleHolds(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

type Sweeper struct {
	expirer  Expirer
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	now func() time.Time
}

func New(expirer Expirer, schedule string, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		expirer:  expirer,
		schedule: schedule,
		timeout:  30 * time.Second,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateSchedule проверяет cron-выражение или дескриптор вида "@every 1m".
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", spec, err)
	}
	return nil
}

// Run запускает проходы по расписанию и блокируется до отмены ctx.
// Проход, не успевший завершиться к следующему тику, не дублируется.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := ValidateSchedule(s.schedule); err != nil {
		return err
	}

	cl := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	if _, err := c.AddFunc(s.schedule, func() {
		_, _ = s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.logger.Info("hold sweeper started", zap.String("schedule", s.schedule))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("hold sweeper stopped")
	return nil
}

// RunOnce — один проход; возвращает число снятых удержаний.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	expired, err := s.expirer.ExpireStaleHolds(ctx, s.now())
	if err != nil {
		s.logger.Error("hold sweep failed", zap.Error(err))
		return len(expired), err
	}
	if len(expired) > 0 {
		s.logger.Info("hold sweep", zap.Int("expired", len(expired)))
	}
	return len(expired), nil
}

// cronLogger пишет сообщения cron в zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
