// Package historian drains room actions from the Redis queue into Postgres.
package historian

import (
	"context"
	"time"

	"github.com/jason-s-yu/trivia/internal/cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Queue yields queued records; nil means the queue stayed empty for timeout.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.RoomActionRecord, error)
}

// Store persists batches and ages out idle sessions.
type Store interface {
	InsertActions(ctx context.Context, recs []cache.RoomActionRecord) error
	MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	// Inactivity is how long a session may go without actions before it is
	// marked abandoned. Zero disables the sweep.
	Inactivity    time.Duration
	SweepInterval time.Duration
	// MaxPending caps records retained across failed flushes; the oldest are
	// dropped beyond it.
	MaxPending int
}

// Service batches records from a Queue into a Store.
type Service struct {
	queue Queue
	store Store
	cfg   Config
	log   logrus.FieldLogger
	now   func() time.Time

	batch     []cache.RoomActionRecord
	lastFlush time.Time
}

func New(queue Queue, store Store, cfg Config, logger logrus.FieldLogger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = cfg.BatchSize * 50
	}
	return &Service{
		queue: queue,
		store: store,
		cfg:   cfg,
		log:   logger,
		now:   time.Now,
		batch: make([]cache.RoomActionRecord, 0, cfg.BatchSize),
	}
}

// Run blocks until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.readLoop(gctx)
		return nil
	})
	if s.cfg.Inactivity > 0 {
		g.Go(func() error {
			s.sweepLoop(gctx)
			return nil
		})
	}
	return g.Wait()
}

// readLoop pops one record at a time. The pop timeout is the flush interval
// so a quiet queue still flushes on time.
func (s *Service) readLoop(ctx context.Context) {
	s.lastFlush = s.now()
	for {
		if ctx.Err() != nil {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.flush(flushCtx)
			cancel()
			return
		}

		rec, err := s.queue.Pop(ctx, s.cfg.FlushInterval)
		if err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("BLPop")
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.FlushInterval):
			}
		}
		if rec != nil {
			s.batch = append(s.batch, *rec)
		}
		if len(s.batch) >= s.cfg.BatchSize || s.now().Sub(s.lastFlush) >= s.cfg.FlushInterval {
			s.flush(ctx)
		}
	}
}

// flush writes the pending batch. On failure the batch is kept for the next
// attempt, trimmed to MaxPending.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = s.now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.store.InsertActions(ctx, s.batch); err != nil {
		s.log.WithError(err).WithField("pending", len(s.batch)).Error("flush room actions")
		if over := len(s.batch) - s.cfg.MaxPending; over > 0 {
			s.log.WithField("dropped", over).Warn("dropping oldest room actions")
			s.batch = append(s.batch[:0], s.batch[over:]...)
		}
		return
	}
	s.log.WithField("count", len(s.batch)).Debug("flushed room actions")
	s.batch = s.batch[:0]
}

// sweepLoop periodically marks idle sessions abandoned.
func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.MarkAbandoned(ctx, s.now().Add(-s.cfg.Inactivity))
			if err != nil {
				s.log.WithError(err).Error("mark abandoned sessions")
				continue
			}
			if n > 0 {
				s.log.WithField("sessions", n).Info("marked sessions abandoned due to inactivity")
			}
		}
	}
}
