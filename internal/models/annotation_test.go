package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnnotationAccept(t *testing.T) {
	ann, err := NewAnnotation("s1", true, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, ann.ID)
	assert.Equal(t, "s1", ann.SampleID)
	assert.Equal(t, DefaultAnnotatorID, ann.AnnotatorID)
	assert.True(t, ann.IsAcceptable)
	assert.Empty(t, ann.PrimaryIssue)
	assert.False(t, ann.AnnotatedAt.IsZero())
	assert.Equal(t, ann.AnnotatedAt.UTC(), ann.AnnotatedAt, "timestamp must be UTC")
}

func TestNewAnnotationReject(t *testing.T) {
	ann, err := NewAnnotation("s1", false, IssueIncomplete, "  missing steps  ")
	require.NoError(t, err)
	assert.False(t, ann.IsAcceptable)
	assert.Equal(t, IssueIncomplete, ann.PrimaryIssue)
	assert.Equal(t, "missing steps", ann.Notes, "notes should be trimmed")
}

func TestNewAnnotationValidation(t *testing.T) {
	tests := []struct {
		name         string
		sampleID     string
		isAcceptable bool
		issue        IssueType
		notes        string
		field        string
	}{
		{"empty sample id", "", true, "", "", "sample_id"},
		{"reject without notes", "s1", false, IssueHallucination, "", "notes"},
		{"reject with blank notes", "s1", false, IssueHallucination, "   ", "notes"},
		{"reject without issue", "s1", false, "", "some notes", "primary_issue"},
		{"reject with unknown issue", "s1", false, "too_long", "some notes", "primary_issue"},
		{"accept with issue", "s1", true, IssueOther, "", "primary_issue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAnnotation(tt.sampleID, tt.isAcceptable, tt.issue, tt.notes)
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestValidIssue(t *testing.T) {
	for _, issue := range IssueTypes {
		assert.True(t, ValidIssue(issue))
	}
	assert.False(t, ValidIssue(""))
	assert.False(t, ValidIssue("not_an_issue"))
}
