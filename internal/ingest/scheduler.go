package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lox/vocmax/internal/store"
)

// Scheduler refreshes the site index and prunes old data on intervals.
type Scheduler struct {
	store            *store.Store
	ingester         *Ingester
	logger           *zap.Logger
	indexInterval    time.Duration
	cleanupInterval  time.Duration
	payloadRetention int // days
	runRetention     int // days
}

func NewScheduler(st *store.Store, ingester *Ingester, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:            st,
		ingester:         ingester,
		logger:           logger,
		indexInterval:    24 * time.Hour,
		cleanupInterval:  24 * time.Hour,
		payloadRetention: 365,
		runRetention:     90,
	}
}

// SetIndexInterval changes how often the site index is refreshed.
func (s *Scheduler) SetIndexInterval(d time.Duration) {
	if d > 0 {
		s.indexInterval = d
	}
}

// SetRetention sets how many days raw payloads and simulation runs are kept.
// Zero keeps the current value.
func (s *Scheduler) SetRetention(payloadDays, runDays int) {
	if payloadDays > 0 {
		s.payloadRetention = payloadDays
	}
	if runDays > 0 {
		s.runRetention = runDays
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.syncIndex(ctx)
	s.cleanup()

	indexTicker := time.NewTicker(s.indexInterval)
	cleanupTicker := time.NewTicker(s.cleanupInterval)
	defer indexTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler: shutting down")
			return
		case <-indexTicker.C:
			s.syncIndex(ctx)
		case <-cleanupTicker.C:
			s.cleanup()
		}
	}
}

func (s *Scheduler) syncIndex(ctx context.Context) {
	if s.ingester == nil || s.ingester.source == nil {
		return
	}
	if _, err := s.ingester.SyncIndex(ctx); err != nil {
		s.logger.Error("scheduler: sync site index", zap.Error(err))
	}
}

func (s *Scheduler) cleanup() {
	if n, err := s.store.CleanupOldRawPayloads(s.payloadRetention); err != nil {
		s.logger.Error("scheduler: cleanup raw payloads", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("scheduler: removed raw payloads", zap.Int64("count", n))
	}
	if n, err := s.store.CleanupOldRuns(s.runRetention); err != nil {
		s.logger.Error("scheduler: cleanup runs", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("scheduler: removed simulation runs", zap.Int64("count", n))
	}
}
