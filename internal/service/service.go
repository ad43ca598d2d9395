// Package service keeps the per-segment histories of the active run and
// publishes a fresh advisor every time they change.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/verte-zerg/grind/internal/advisor"
	"github.com/verte-zerg/grind/internal/fit"
	"github.com/verte-zerg/grind/internal/logging"
	"github.com/verte-zerg/grind/internal/model"
)

var (
	// ErrNoRun is returned when recording before a run is opened.
	ErrNoRun = errors.New("no run is open")
	// ErrUnknownSegment is returned for segments outside the run's order.
	ErrUnknownSegment = errors.New("unknown segment")
)

// HistorySource reads persisted attempt data.
type HistorySource interface {
	// OutcomeHistory returns a segment's outcomes in insertion order.
	OutcomeHistory(ctx context.Context, runID string, segment model.SegmentID) ([]bool, bool, error)
	// SegmentDurations returns the run's segment order and nominal durations.
	SegmentDurations(ctx context.Context, runID string) (model.Durations, bool, error)
}

// OutcomeRecorder persists attempt data.
type OutcomeRecorder interface {
	AppendOutcome(ctx context.Context, runID string, segment model.SegmentID, success bool) error
	// ClearOutcomes removes a segment's outcomes, or the whole run's when segment is empty.
	ClearOutcomes(ctx context.Context, runID string, segment model.SegmentID) error
}

// Store is the persistence collaborator of the service.
type Store interface {
	HistorySource
	OutcomeRecorder
}

// Mode selects where refits run.
type Mode int

const (
	// ModeSync refits on the caller's goroutine before returning.
	ModeSync Mode = iota
	// ModeDeferred refits on a worker goroutine; callers return immediately.
	ModeDeferred
)

// Options configures a Service.
type Options struct {
	Mode       Mode
	MinSamples int
	// Precompute computes the recommendation before publishing an advisor.
	Precompute bool
	Advisor    advisor.Options
}

// Service owns the live histories of one run and the published advisor.
type Service struct {
	store Store
	log   *logging.Logger
	opts  Options

	mu        sync.Mutex
	runID     string
	durations model.Durations
	histories map[model.SegmentID][]bool

	generation atomic.Uint64
	published  atomic.Pointer[snapshot]
	workers    sync.WaitGroup
}

type snapshot struct {
	generation uint64
	runID      string
	advisor    *advisor.Advisor
}

// input is a deep copy of everything a refit reads.
type input struct {
	runID     string
	durations model.Durations
	histories map[model.SegmentID][]bool
}

// New returns a service with an empty advisor published.
func New(store Store, log *logging.Logger, opts Options) *Service {
	if opts.MinSamples <= 0 {
		opts.MinSamples = fit.DefaultMinSamples
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &Service{
		store:     store,
		log:       log,
		opts:      opts,
		histories: map[model.SegmentID][]bool{},
	}
	s.published.Store(&snapshot{advisor: advisor.Empty()})
	return s
}

// Advisor returns the most recently published advisor. It never blocks.
func (s *Service) Advisor() *advisor.Advisor {
	return s.published.Load().advisor
}

// PublishedRun returns the run the published advisor was built for.
func (s *Service) PublishedRun() string {
	return s.published.Load().runID
}

// RunID returns the open run.
func (s *Service) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Open switches to a run, reloading its durations and histories, and refits.
// A run without durations publishes an empty advisor.
func (s *Service) Open(ctx context.Context, runID string) error {
	durations, ok, err := s.store.SegmentDurations(ctx, runID)
	if err != nil {
		return fmt.Errorf("load segment durations: %w", err)
	}
	histories := map[model.SegmentID][]bool{}
	if ok {
		for _, id := range durations.Order {
			outcomes, found, err := s.store.OutcomeHistory(ctx, runID, id)
			if err != nil {
				return fmt.Errorf("load history for %s: %w", id, err)
			}
			if found {
				histories[id] = outcomes
			}
		}
	} else {
		durations = model.Durations{Seconds: map[model.SegmentID]float64{}}
		s.log.Info("run has no segment durations", "run_id", runID)
	}

	s.mu.Lock()
	s.runID = runID
	s.durations = durations
	s.histories = histories
	gen, in := s.snapshotLocked()
	s.mu.Unlock()

	s.dispatch(gen, in)
	return nil
}

// Record persists an outcome, merges it into the live history and refits.
func (s *Service) Record(ctx context.Context, segment model.SegmentID, success bool) error {
	s.mu.Lock()
	if s.runID == "" {
		s.mu.Unlock()
		return ErrNoRun
	}
	if _, ok := s.durations.Seconds[segment]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSegment, segment)
	}
	if err := s.store.AppendOutcome(ctx, s.runID, segment, success); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("append outcome: %w", err)
	}
	s.histories[segment] = append(s.histories[segment], success)
	gen, in := s.snapshotLocked()
	s.mu.Unlock()

	s.dispatch(gen, in)
	return nil
}

// Clear removes the outcomes of one segment, or of every segment when
// segment is empty, and refits.
func (s *Service) Clear(ctx context.Context, segment model.SegmentID) error {
	s.mu.Lock()
	if s.runID == "" {
		s.mu.Unlock()
		return ErrNoRun
	}
	if err := s.store.ClearOutcomes(ctx, s.runID, segment); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clear outcomes: %w", err)
	}
	if segment == "" {
		s.histories = map[model.SegmentID][]bool{}
	} else {
		delete(s.histories, segment)
	}
	gen, in := s.snapshotLocked()
	s.mu.Unlock()

	s.dispatch(gen, in)
	return nil
}

// Wait blocks until every dispatched refit has finished.
func (s *Service) Wait() {
	s.workers.Wait()
}

// snapshotLocked copies the live inputs and claims the next generation.
// Claiming under the lock keeps generations ordered like the data they see.
func (s *Service) snapshotLocked() (uint64, input) {
	in := input{
		runID:     s.runID,
		durations: s.durations.Clone(),
		histories: make(map[model.SegmentID][]bool, len(s.histories)),
	}
	for id, outcomes := range s.histories {
		in.histories[id] = append([]bool(nil), outcomes...)
	}
	return s.generation.Add(1), in
}

func (s *Service) dispatch(gen uint64, in input) {
	if s.opts.Mode != ModeDeferred {
		s.refit(gen, in)
		return
	}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.refit(gen, in)
	}()
}
