// Package session tracks annotation progress over the unannotated set. The
// cursor is never trusted across writes: every transition re-fetches the
// unannotated list from the store, and every submission re-verifies the
// current sample before writing, so no sample can be annotated twice and
// none can be skipped.
package session

import (
	"errors"
	"fmt"

	"labelbench/internal/models"

	"go.uber.org/zap"
)

// Store is the persistence surface the session depends on.
type Store interface {
	GetUnannotatedSamples() ([]models.Sample, error)
	GetAnnotation(sampleID string) (*models.Annotation, error)
	InsertAnnotation(ann *models.Annotation) error
	CountSamples() (int, error)
}

// State of the annotation session.
type State int

const (
	// Idle: nothing imported yet.
	Idle State = iota
	// InProgress: the cursor points at an unannotated sample.
	InProgress
	// Complete: samples exist and all are annotated. Terminal until a new
	// import shows up on the next refresh.
	Complete
)

func (s State) String() string {
	switch s {
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return "idle"
	}
}

// Decision is one accept/reject judgment for the current sample.
type Decision struct {
	IsAcceptable bool             `json:"is_acceptable"`
	PrimaryIssue models.IssueType `json:"primary_issue,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

// Progress is a presentation snapshot of the session.
type Progress struct {
	State     string `json:"state"`
	Position  int    `json:"position"` // 1-based cursor, 0 outside InProgress
	Remaining int    `json:"remaining"`
	Total     int    `json:"total_samples"`
	Annotated int    `json:"annotated"`
}

// Session is a single-annotator cursor over the unannotated set.
type Session struct {
	store  Store
	logger *zap.Logger

	state  State
	queue  []models.Sample
	cursor int
	total  int
}

// New returns an Idle session. Call Refresh before use.
func New(store Store, logger *zap.Logger) *Session {
	return &Session{store: store, logger: logger}
}

// Refresh re-fetches the unannotated list and the sample count from the
// store and recomputes the state. The cursor is clamped into the new list.
func (s *Session) Refresh() error {
	queue, err := s.store.GetUnannotatedSamples()
	if err != nil {
		return fmt.Errorf("failed to refresh unannotated samples: %w", err)
	}
	total, err := s.store.CountSamples()
	if err != nil {
		return fmt.Errorf("failed to count samples: %w", err)
	}

	s.queue = queue
	s.total = total
	switch {
	case len(queue) > 0:
		s.state = InProgress
		s.clamp()
	case total > 0:
		s.state = Complete
		s.cursor = 0
	default:
		s.state = Idle
		s.cursor = 0
	}
	return nil
}

func (s *Session) clamp() {
	if s.cursor < 0 {
		s.cursor = 0
	}
	if s.cursor > len(s.queue)-1 {
		s.cursor = len(s.queue) - 1
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Current returns the sample under the cursor, if any.
func (s *Session) Current() (models.Sample, bool) {
	if s.state != InProgress {
		return models.Sample{}, false
	}
	return s.queue[s.cursor], true
}

// Seek moves the cursor to index i, clamped to [0, len-1].
func (s *Session) Seek(i int) {
	s.cursor = i
	if s.state == InProgress {
		s.clamp()
	} else {
		s.cursor = 0
	}
}

// Next advances the cursor by one, clamped.
func (s *Session) Next() { s.Seek(s.cursor + 1) }

// Prev moves the cursor back by one, clamped.
func (s *Session) Prev() { s.Seek(s.cursor - 1) }

// Progress reports position and remaining counts.
func (s *Session) Progress() Progress {
	p := Progress{
		State:     s.state.String(),
		Remaining: len(s.queue),
		Total:     s.total,
		Annotated: s.total - len(s.queue),
	}
	if s.state == InProgress {
		p.Position = s.cursor + 1
	}
	return p
}

// Submit records a decision for the current sample. Before writing it
// re-verifies against the store that the sample is still unannotated; a
// stale cursor yields StaleStateError and the session re-fetches instead of
// doing local index arithmetic. On success the unannotated list is
// re-fetched as well.
func (s *Session) Submit(d Decision) error {
	current, ok := s.Current()
	if !ok {
		return fmt.Errorf("no sample to annotate (session is %s)", s.state)
	}

	existing, err := s.store.GetAnnotation(current.ID)
	var notFound *models.NotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to verify sample %s: %w", current.ID, err)
	}
	if existing != nil {
		s.logger.Warn("Stale cursor, sample already annotated", zap.String("sample_id", current.ID))
		if refreshErr := s.Refresh(); refreshErr != nil {
			return refreshErr
		}
		return &models.StaleStateError{SampleID: current.ID}
	}

	ann, err := models.NewAnnotation(current.ID, d.IsAcceptable, d.PrimaryIssue, d.Notes)
	if err != nil {
		return err
	}

	if err := s.store.InsertAnnotation(ann); err != nil {
		var dup *models.DuplicateAnnotationError
		if errors.As(err, &dup) {
			// Lost the race between the verify and the insert; the
			// transactional check in the store caught it.
			if refreshErr := s.Refresh(); refreshErr != nil {
				return refreshErr
			}
			return &models.StaleStateError{SampleID: current.ID}
		}
		return err
	}

	return s.Refresh()
}
