package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// IssueType is the enumerated rejection reason category.
type IssueType string

const (
	IssueHallucination      IssueType = "hallucination"
	IssueFactuallyIncorrect IssueType = "factually_incorrect"
	IssueIncomplete         IssueType = "incomplete"
	IssueWrongFormat        IssueType = "wrong_format"
	IssueOffTopic           IssueType = "off_topic"
	IssueInappropriateTone  IssueType = "inappropriate_tone"
	IssueRefusal            IssueType = "refusal"
	IssueOther              IssueType = "other"
)

// IssueTypes lists the valid categories in display order.
var IssueTypes = []IssueType{
	IssueHallucination,
	IssueFactuallyIncorrect,
	IssueIncomplete,
	IssueWrongFormat,
	IssueOffTopic,
	IssueInappropriateTone,
	IssueRefusal,
	IssueOther,
}

// ValidIssue reports whether t is one of the enumerated categories.
func ValidIssue(t IssueType) bool {
	for _, v := range IssueTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Annotation is a recorded accept/reject decision for exactly one Sample.
// Annotations are append-only; there is no update path.
type Annotation struct {
	ID           string    `json:"id" db:"id"`
	SampleID     string    `json:"sample_id" db:"sample_id"`
	AnnotatorID  string    `json:"annotator_id" db:"annotator_id"`
	IsAcceptable bool      `json:"is_acceptable" db:"is_acceptable"`
	PrimaryIssue IssueType `json:"primary_issue,omitempty" db:"primary_issue"`
	Notes        string    `json:"notes,omitempty" db:"notes"`
	AnnotatedAt  time.Time `json:"annotated_at" db:"annotated_at"`
}

// NewAnnotation validates and builds an Annotation. A rejection requires a
// valid primary issue and non-blank notes; an acceptance must not carry an
// issue. The id and timestamp are assigned here.
func NewAnnotation(sampleID string, isAcceptable bool, issue IssueType, notes string) (*Annotation, error) {
	sampleID = strings.TrimSpace(sampleID)
	notes = strings.TrimSpace(notes)

	if sampleID == "" {
		return nil, &ValidationError{Field: "sample_id", Reason: "cannot be empty"}
	}
	if isAcceptable {
		if issue != "" {
			return nil, &ValidationError{Field: "primary_issue", Reason: "must be empty when the sample is accepted"}
		}
	} else {
		if !ValidIssue(issue) {
			return nil, &ValidationError{Field: "primary_issue", Reason: "unknown issue type " + string(issue)}
		}
		if notes == "" {
			return nil, &ValidationError{Field: "notes", Reason: "required when the sample is rejected"}
		}
	}

	return &Annotation{
		ID:           uuid.New().String(),
		SampleID:     sampleID,
		AnnotatorID:  DefaultAnnotatorID,
		IsAcceptable: isAcceptable,
		PrimaryIssue: issue,
		Notes:        notes,
		AnnotatedAt:  time.Now().UTC(),
	}, nil
}

// AnnotatedSample joins a Sample with its Annotation for export and the
// issue drilldown.
type AnnotatedSample struct {
	Sample     Sample     `json:"sample"`
	Annotation Annotation `json:"annotation"`
}

// Stats summarizes annotation progress across the whole database.
type Stats struct {
	TotalSamples   int               `json:"total_samples"`
	TotalAnnotated int               `json:"total_annotated"`
	Accepted       int               `json:"accepted"`
	Rejected       int               `json:"rejected"`
	AcceptanceRate float64           `json:"acceptance_rate"`
	IssueCounts    map[IssueType]int `json:"issue_counts"`
}
