package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/metrics"
)

// Janitor periodically deletes the persisted portal sessions that have expired.
type Janitor struct {
	cron    *cron.Cron
	auth    *AuthService
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

func NewJanitor(auth *AuthService, m *metrics.Metrics) *Janitor {
	return &Janitor{
		cron:    cron.New(),
		auth:    auth,
		metrics: m,
		log:     logger.L.With("component", "janitor"),
		now:     time.Now,
	}
}

// Schedule registers the purge with a cron spec such as "@every 15m".
func (j *Janitor) Schedule(spec string) error {
	if _, err := j.cron.AddFunc(spec, func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("invalid session cleanup schedule %q: %w", spec, err)
	}
	j.log.Info("Session purge registered", "schedule", spec)
	return nil
}

// RunOnce purges expired sessions now and returns how many rows went.
func (j *Janitor) RunOnce() int64 {
	n, err := j.auth.PurgeExpired(j.now())
	if err != nil {
		j.log.Error("Session purge failed", "error", err)
		return 0
	}
	j.metrics.SessionsPurged(n)
	if n > 0 {
		j.log.Info("Expired sessions purged", "count", n)
	}
	return n
}

func (j *Janitor) Start() {
	j.cron.Start()
	j.log.Info("Janitor started")
}

// Stop waits for a running purge to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("Janitor stopped")
}
