package service

import (
	"fmt"
	"sync"

	"labelbench/internal/models"
	"labelbench/internal/repository"
)

// Reporter serves read-side aggregates. Results only change when an
// annotation is written or samples are imported, so they are cached keyed
// by both counts (and, for breakdowns, the metadata key) and recomputed
// when either count moves.
type Reporter struct {
	store *repository.Store

	mu                sync.Mutex
	cachedAnnotations int
	cachedSamples     int
	stats             *models.Stats
	breakdowns        map[string]*models.Breakdown
}

// NewReporter wraps the store with cached aggregation.
func NewReporter(store *repository.Store) *Reporter {
	return &Reporter{store: store, cachedAnnotations: -1, cachedSamples: -1}
}

// revalidate drops the cache if annotations or samples were written since
// it was filled. Callers hold r.mu.
func (r *Reporter) revalidate() error {
	annotations, err := r.store.CountAnnotations()
	if err != nil {
		return err
	}
	samples, err := r.store.CountSamples()
	if err != nil {
		return err
	}
	if annotations != r.cachedAnnotations || samples != r.cachedSamples {
		r.cachedAnnotations = annotations
		r.cachedSamples = samples
		r.stats = nil
		r.breakdowns = nil
	}
	return nil
}

// Stats returns the aggregate annotation statistics. The acceptance rate is
// 0 when nothing is annotated.
func (r *Reporter) Stats() (*models.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.revalidate(); err != nil {
		return nil, fmt.Errorf("failed to revalidate stats cache: %w", err)
	}
	if r.stats == nil {
		stats, err := r.store.GetAnnotationStats()
		if err != nil {
			return nil, err
		}
		r.stats = stats
	}
	return r.stats, nil
}

// Breakdown returns accept/reject counts grouped by the value of one
// metadata key.
func (r *Reporter) Breakdown(key string) (*models.Breakdown, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.revalidate(); err != nil {
		return nil, fmt.Errorf("failed to revalidate breakdown cache: %w", err)
	}
	if b, ok := r.breakdowns[key]; ok {
		return b, nil
	}
	b, err := r.store.GetBreakdownByMetadata(key)
	if err != nil {
		return nil, err
	}
	if r.breakdowns == nil {
		r.breakdowns = make(map[string]*models.Breakdown)
	}
	r.breakdowns[key] = b
	return b, nil
}
