// Package scheduler runs the periodic expiry sweep outside request handling.
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/shortlink/pkg/adapters/metrics"
)

// Sweeper is the subset of ports.LinkService the worker needs.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type ExpiryWorker struct {
	service  Sweeper
	interval time.Duration
	log      logrus.FieldLogger
}

func NewExpiryWorker(service Sweeper, interval time.Duration, log logrus.FieldLogger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		service:  service,
		interval: interval,
		log:      log.WithField("worker", "expiry_sweep"),
	}
}

// Run sweeps every interval until ctx is cancelled. It always returns nil so a
// failing sweep never takes the server down.
func (w *ExpiryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry sweeper stopped")
			return nil
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of removed links.
func (w *ExpiryWorker) SweepOnce(ctx context.Context) int64 {
	n, err := w.service.SweepExpired(ctx)
	if err != nil {
		metrics.SweepFailures.Inc()
		w.log.WithError(err).Error("expiry sweep failed")
		return 0
	}

	metrics.SweptLinks.Add(float64(n))
	if n > 0 {
		w.log.WithField("deleted", n).Info("cleaned up expired links")
	}
	return n
}
