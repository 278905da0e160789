package cache

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"shared-cache/logging"
)

// sweeper runs the periodic maintenance pass: expired local entries are
// removed and the exported size gauge refreshed. Scheduling is handed to
// cron with a skip-if-still-running chain so a slow pass skips the next
// cycle instead of overlapping it, and a recover wrapper so a failing pass
// is logged and never reaches request-serving calls.
type sweeper struct {
	service  *Service
	interval time.Duration
	cron     *cron.Cron
}

func newSweeper(s *Service, interval time.Duration) *sweeper {
	return &sweeper{service: s, interval: interval}
}

func (w *sweeper) start() {
	if w.cron != nil {
		return
	}

	cronLog := &cronLogAdapter{logger: w.service.logger}
	w.cron = cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))
	w.cron.Schedule(cron.Every(w.interval), cron.FuncJob(w.sweep))
	w.cron.Start()
}

func (w *sweeper) stop() error {
	if w.cron == nil {
		return nil
	}

	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("maintenance sweep did not finish within 5s")
	}
	w.cron = nil
	return nil
}

// sweep is one bounded maintenance pass
func (w *sweeper) sweep() {
	removed := w.service.local.SweepExpired()
	size := w.service.local.Len()
	w.service.metrics.ObserveLocalSize(size)

	if removed > 0 {
		w.service.logger.Debug("swept expired local entries",
			logging.Int("removed", removed),
			logging.Int("remaining", size))
	}
}

// cronLogAdapter bridges the cron logger to the structured logger
type cronLogAdapter struct {
	logger logging.Logger
}

func (a *cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, kvFields(keysAndValues)...)
}

func (a *cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, err, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields = append(fields, logging.Any(key, keysAndValues[i+1]))
	}
	return fields
}
