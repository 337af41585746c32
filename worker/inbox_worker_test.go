package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	controller "salesdesk/controllers"
)

type countingSyncer struct {
	calls atomic.Int32
	err   error
}

func (s *countingSyncer) Sync(ctx context.Context) (*controller.SyncResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &controller.SyncResult{}, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestInboxWorkerPollsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := &countingSyncer{}
	w := NewInboxWorker(syncer, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestInboxWorkerKeepsGoingAfterError(t *testing.T) {
	defer goleak.VerifyNone(t)

	syncer := &countingSyncer{err: errors.New("imap down")}
	w := NewInboxWorker(syncer, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestInboxWorkerDisabled(t *testing.T) {
	syncer := &countingSyncer{}
	w := NewInboxWorker(syncer, 0, testLogger())

	w.Start(context.Background())
	assert.Zero(t, syncer.calls.Load())
}
