package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	controller "salesdesk/controllers"
)

// Syncer runs one inbox pass. Satisfied by *controller.InboxSyncer.
type Syncer interface {
	Sync(ctx context.Context) (*controller.SyncResult, error)
}

type InboxWorker struct {
	syncer   Syncer
	interval time.Duration
	logger   *logrus.Entry
}

func NewInboxWorker(syncer Syncer, interval time.Duration, logger *logrus.Entry) *InboxWorker {
	return &InboxWorker{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

// Start polls the inbox every interval until ctx is cancelled. A failed pass
// is logged and retried on the next tick.
func (iw *InboxWorker) Start(ctx context.Context) {
	if iw.interval <= 0 {
		iw.logger.Info("Inbox worker disabled")
		return
	}

	iw.logger.WithField("interval", iw.interval.String()).Info("Starting inbox worker...")
	ticker := time.NewTicker(iw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			iw.runOnce(ctx)
		case <-ctx.Done():
			iw.logger.Info("Stopping inbox worker...")
			return
		}
	}
}

func (iw *InboxWorker) runOnce(ctx context.Context) {
	result, err := iw.syncer.Sync(ctx)
	if err != nil {
		if ctx.Err() == nil {
			iw.logger.WithError(err).Warn("Inbox sync failed")
		}
		return
	}
	iw.logger.WithField("stored", result.Stored).Debug("Inbox pass finished")
}
