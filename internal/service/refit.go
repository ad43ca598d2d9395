package service

import (
	"errors"
	"time"

	"github.com/verte-zerg/grind/internal/advisor"
	"github.com/verte-zerg/grind/internal/fit"
	"github.com/verte-zerg/grind/internal/model"
)

// refit fits every segment of in and publishes the resulting advisor unless
// a newer generation was dispatched meanwhile. Supersession is checked
// before starting and between segment fits.
func (s *Service) refit(gen uint64, in input) bool {
	log := s.log.With("run_id", in.runID, "generation", gen)
	if s.superseded(gen) {
		log.Debug("refit superseded before start")
		return false
	}
	start := time.Now()

	models := make(map[model.SegmentID]model.SuccessModel, len(in.durations.Order))
	for _, id := range in.durations.Order {
		if s.superseded(gen) {
			log.Debug("refit superseded", "fitted", len(models))
			return false
		}
		res := fit.FitDetailed(in.histories[id], in.durations.Seconds[id], s.opts.MinSamples)
		switch {
		case errors.Is(res.Err, fit.ErrNoVariation):
			log.Debug("segment outcomes never vary", "segment", id, "attempts", len(in.histories[id]))
		case res.Kind == fit.FellBackConstant && res.Err != nil:
			log.Warn("fit fell back to constant model", "segment", id, "attempts", len(in.histories[id]), "error", res.Err)
		case res.Model.Confidence == model.NegativeLearningRate:
			log.Info("segment success rate is declining", "segment", id, "attempts", len(in.histories[id]))
		}
		models[id] = res.Model
	}

	adv := advisor.New(in.durations.Order, models, s.opts.Advisor)
	if s.opts.Precompute {
		adv.Recommendation()
	}
	if !s.publish(&snapshot{generation: gen, runID: in.runID, advisor: adv}) {
		log.Debug("refit lost publish race")
		return false
	}
	log.Debug("published advisor", "segments", len(models), "elapsed", time.Since(start))
	return true
}

func (s *Service) superseded(gen uint64) bool {
	return s.generation.Load() != gen
}

// publish swaps in next unless an equal or newer generation is already published.
func (s *Service) publish(next *snapshot) bool {
	for {
		cur := s.published.Load()
		if cur != nil && cur.generation >= next.generation {
			return false
		}
		if s.published.CompareAndSwap(cur, next) {
			return true
		}
	}
}
