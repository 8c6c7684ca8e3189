package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJanitorSchedule runs the janitor every ten minutes.
const DefaultJanitorSchedule = "@every 10m"

// TokenJanitor periodically deletes expired tokens.
type TokenJanitor struct {
	store    *Store
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// JanitorOption configures a TokenJanitor.
type JanitorOption func(*TokenJanitor)

// WithSchedule sets a cron spec, e.g. "@hourly" or "*/5 * * * *".
func WithSchedule(spec string) JanitorOption {
	return func(j *TokenJanitor) { j.schedule = spec }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) JanitorOption {
	return func(j *TokenJanitor) { j.now = now }
}

// NewTokenJanitor schedules Sweep on the admin store. Call Start to run it.
func NewTokenJanitor(store *Store, logger *zap.Logger, opts ...JanitorOption) (*TokenJanitor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &TokenJanitor{
		store:    store,
		schedule: DefaultJanitorSchedule,
		timeout:  time.Minute,
		now:      time.Now,
		logger:   logger.Named("janitor"),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.cron = cron.New(cron.WithLogger(cron.PrintfLogger(zap.NewStdLog(j.logger))))
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}
	return j, nil
}

func (j *TokenJanitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if _, err := j.Sweep(ctx); err != nil {
		j.logger.Error("Token sweep failed", zap.Error(err))
	}
}

// Sweep deletes the tokens that have expired and returns how many it removed.
func (j *TokenJanitor) Sweep(ctx context.Context) (int, error) {
	rows, err := j.store.DeleteExpiredTokens(ctx, nil, j.now())
	if err != nil {
		return 0, err
	}
	if len(rows) > 0 {
		j.logger.Info("Expired tokens removed", zap.Int("count", len(rows)))
	}
	return len(rows), nil
}

// Start runs the schedule in the background.
func (j *TokenJanitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep.
func (j *TokenJanitor) Stop() {
	<-j.cron.Stop().Done()
}
