// Package scheduler runs periodic maintenance: cache expiry and stale
// anonymous counter sweeps.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/painscout/painscout/internal/storage"
)

// Service owns the cron runner.
type Service struct {
	cron  *cron.Cron
	store *storage.Store
}

// NewService creates the scheduler.
func NewService(store *storage.Store) *Service {
	return &Service{
		cron:  cron.New(cron.WithSeconds()),
		store: store,
	}
}

// Start registers the maintenance job and starts the runner. The sweep also
// runs once immediately so a long-idle database is cleaned on boot.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc("0 0 * * * *", s.purge)
	if err != nil {
		return err
	}
	s.cron.Start()
	logrus.Info("Scheduler started: hourly cache purge")

	go s.purge()
	return nil
}

// Stop halts the runner and waits for a running job to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logrus.Info("Scheduler stopped")
}

func (s *Service) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := s.store.PurgeExpired(ctx, time.Now())
	if err != nil {
		logrus.Errorf("Maintenance sweep failed: %v", err)
		return
	}
	if purged > 0 {
		logrus.Infof("Purged %d expired cache entries", purged)
	}
}
