package reader

import (
	"context"
	"sync"
	"time"

	"github.com/kerbaras/shelf/pkg/data"
	"github.com/kerbaras/shelf/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ProgressPusher sends reading progress to the library backend
type ProgressPusher interface {
	UpdateProgress(ctx context.Context, bookID string, progress data.Progress) error
}

// ProgressSyncer pushes progress to the backend in the background. Pushes for
// the same book are coalesced so only the latest value is sent, and remote
// calls are rate limited. Failures are logged and never retried.
type ProgressSyncer struct {
	pusher  ProgressPusher
	limiter *rate.Limiter
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.Mutex
	pending map[string]data.Progress
	order   []string
	lastErr error

	// held while draining so values are sent in the order they were taken
	sendMu sync.Mutex

	wake      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   chan struct{}
	closeOnce sync.Once
}

func NewProgressSyncer(pusher ProgressPusher, interval time.Duration, log logrus.FieldLogger) *ProgressSyncer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if log == nil {
		log = utils.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &ProgressSyncer{
		pusher:  pusher,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		timeout: 30 * time.Second,
		log:     log.WithField("component", "syncer"),
		pending: make(map[string]data.Progress),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

// Push records progress for a book, replacing any value not yet sent
func (s *ProgressSyncer) Push(bookID string, progress data.Progress) {
	s.mu.Lock()
	if _, ok := s.pending[bookID]; !ok {
		s.order = append(s.order, bookID)
	}
	s.pending[bookID] = progress
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether any progress is waiting to be sent
func (s *ProgressSyncer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// LastError returns the error of the most recent failed push, if any
func (s *ProgressSyncer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *ProgressSyncer) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}
		// a push already started completes even if Close is called meanwhile
		s.drain(context.Background())
	}
}

// Flush sends every pending value now, ignoring the rate limit
func (s *ProgressSyncer) Flush(ctx context.Context) error {
	return s.drain(ctx)
}

func (s *ProgressSyncer) drain(ctx context.Context) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	pending, order := s.pending, s.order
	s.pending = make(map[string]data.Progress)
	s.order = nil
	s.mu.Unlock()

	var firstErr error
	for _, id := range order {
		progress := pending[id]
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.pusher.UpdateProgress(callCtx, id, progress)
		cancel()

		entry := s.log.WithField("book_id", id).WithField("page", progress.Page)
		if err != nil {
			entry.WithError(err).Warn("failed to sync progress")
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		entry.Debug("progress synced")
	}
	return firstErr
}

// Close stops the background worker and flushes what is left
func (s *ProgressSyncer) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.stopped
		err = s.Flush(ctx)
	})
	return err
}
