package repository

import (
	"path/filepath"
	"testing"

	"labelbench/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mustSample(t *testing.T, id, prompt, response string, md models.Metadata) *models.Sample {
	t.Helper()
	sample, err := models.NewSample(id, prompt, response, md)
	require.NoError(t, err)
	return sample
}

func mustAnnotation(t *testing.T, sampleID string, acceptable bool, issue models.IssueType, notes string) *models.Annotation {
	t.Helper()
	ann, err := models.NewAnnotation(sampleID, acceptable, issue, notes)
	require.NoError(t, err)
	return ann
}

func TestInsertAndGetSampleRoundTrip(t *testing.T) {
	store := newTestStore(t)

	sample := mustSample(t, "test_1", "Test prompt", "Test response",
		models.Metadata{"model": models.StringMeta("gpt-4"), "temp": models.NumberMeta(0.7)})

	inserted, err := store.InsertSamples([]*models.Sample{sample})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.False(t, sample.ImportedAt.IsZero(), "insert assigns imported_at")

	got, err := store.GetSample("test_1")
	require.NoError(t, err)
	assert.Equal(t, sample.ID, got.ID)
	assert.Equal(t, sample.Prompt, got.Prompt)
	assert.Equal(t, sample.Response, got.Response)
	assert.Equal(t, sample.Metadata, got.Metadata)
	assert.False(t, got.ImportedAt.IsZero())
}

func TestGetSampleNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSample("nope")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.ID)
}

func TestInsertSamplesDuplicateIsAllOrNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.InsertSamples([]*models.Sample{mustSample(t, "dup_1", "First", "First response", nil)})
	require.NoError(t, err)

	batch := []*models.Sample{
		mustSample(t, "fresh_1", "p", "r", nil),
		mustSample(t, "dup_1", "Second", "Second response", nil),
		mustSample(t, "fresh_2", "p", "r", nil),
	}
	inserted, err := store.InsertSamples(batch)
	assert.Equal(t, 0, inserted)

	var dup *models.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"dup_1"}, dup.IDs)

	// Nothing from the batch was inserted.
	count, err := store.CountSamples()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.GetSample("dup_1")
	require.NoError(t, err)
	assert.Equal(t, "First", got.Prompt, "existing sample must not be overwritten")

	// A rejected batch must not look imported either.
	for _, sample := range batch {
		assert.True(t, sample.ImportedAt.IsZero())
	}
}

func TestInsertSamplesReportsInBatchDuplicates(t *testing.T) {
	store := newTestStore(t)

	batch := []*models.Sample{
		mustSample(t, "a", "p", "r", nil),
		mustSample(t, "a", "p2", "r2", nil),
	}
	inserted, err := store.InsertSamples(batch)
	assert.Equal(t, 0, inserted)

	var dup *models.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, []string{"a"}, dup.IDs)
}

func TestGetUnannotatedSamplesInInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	batch := []*models.Sample{
		mustSample(t, "s0", "Prompt 0", "Response 0", nil),
		mustSample(t, "s1", "Prompt 1", "Response 1", nil),
		mustSample(t, "s2", "Prompt 2", "Response 2", nil),
	}
	_, err := store.InsertSamples(batch)
	require.NoError(t, err)

	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "s1", true, "", "")))

	unannotated, err := store.GetUnannotatedSamples()
	require.NoError(t, err)
	require.Len(t, unannotated, 2)
	assert.Equal(t, "s0", unannotated[0].ID)
	assert.Equal(t, "s2", unannotated[1].ID)
}

func TestInsertAnnotationDuplicateFails(t *testing.T) {
	store := newTestStore(t)

	_, err := store.InsertSamples([]*models.Sample{mustSample(t, "s1", "p", "r", nil)})
	require.NoError(t, err)

	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "s1", true, "", "")))

	err = store.InsertAnnotation(mustAnnotation(t, "s1", false, models.IssueOther, "second try"))
	var dup *models.DuplicateAnnotationError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "s1", dup.SampleID)

	count, err := store.CountAnnotations()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed insert must not change the annotation count")
}

func TestInsertAnnotationUnknownSampleFails(t *testing.T) {
	store := newTestStore(t)

	err := store.InsertAnnotation(mustAnnotation(t, "ghost", true, "", ""))
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestGetAnnotation(t *testing.T) {
	store := newTestStore(t)

	_, err := store.InsertSamples([]*models.Sample{mustSample(t, "s1", "p", "r", nil)})
	require.NoError(t, err)

	_, err = store.GetAnnotation("s1")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "s1", false, models.IssueRefusal, "declined to answer")))

	got, err := store.GetAnnotation("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SampleID)
	assert.False(t, got.IsAcceptable)
	assert.Equal(t, models.IssueRefusal, got.PrimaryIssue)
	assert.Equal(t, "declined to answer", got.Notes)
}

func TestAnnotationStatsScenario(t *testing.T) {
	store := newTestStore(t)

	batch := []*models.Sample{
		mustSample(t, "1", "p1", "r1", nil),
		mustSample(t, "2", "p2", "r2", nil),
		mustSample(t, "3", "p3", "r3", nil),
	}
	_, err := store.InsertSamples(batch)
	require.NoError(t, err)

	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "1", true, "", "")))
	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "2", false, models.IssueIncomplete, "missing steps")))

	stats, err := store.GetAnnotationStats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSamples)
	assert.Equal(t, 2, stats.TotalAnnotated)
	assert.Equal(t, 1, stats.Accepted)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, map[models.IssueType]int{models.IssueIncomplete: 1}, stats.IssueCounts)
	assert.InDelta(t, 0.5, stats.AcceptanceRate, 1e-9)

	unannotated, err := store.GetUnannotatedSamples()
	require.NoError(t, err)
	require.Len(t, unannotated, 1)
	assert.Equal(t, "3", unannotated[0].ID)
}

func TestAnnotationStatsEmpty(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.GetAnnotationStats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAnnotated)
	assert.Zero(t, stats.AcceptanceRate, "acceptance rate for zero annotated is 0, not an error")
}

func TestGetBreakdownByMetadata(t *testing.T) {
	store := newTestStore(t)

	batch := []*models.Sample{
		mustSample(t, "a1", "p", "r", models.Metadata{"model": models.StringMeta("gpt-4")}),
		mustSample(t, "a2", "p", "r", models.Metadata{"model": models.StringMeta("gpt-4")}),
		mustSample(t, "b1", "p", "r", models.Metadata{"model": models.StringMeta("claude")}),
		mustSample(t, "c1", "p", "r", nil), // no metadata, not counted
	}
	_, err := store.InsertSamples(batch)
	require.NoError(t, err)

	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "a1", true, "", "")))
	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "a2", false, models.IssueOffTopic, "wrong subject")))
	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "b1", true, "", "")))
	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "c1", true, "", "")))

	breakdown, err := store.GetBreakdownByMetadata("model")
	require.NoError(t, err)
	assert.Equal(t, "model", breakdown.Key)
	require.Len(t, breakdown.Buckets, 2)

	// Biggest bucket first.
	assert.Equal(t, "gpt-4", breakdown.Buckets[0].Value)
	assert.Equal(t, 1, breakdown.Buckets[0].Accepted)
	assert.Equal(t, 1, breakdown.Buckets[0].Rejected)
	assert.InDelta(t, 0.5, breakdown.Buckets[0].AcceptanceRate, 1e-9)

	assert.Equal(t, "claude", breakdown.Buckets[1].Value)
	assert.Equal(t, 1, breakdown.Buckets[1].Accepted)
	assert.Equal(t, 0, breakdown.Buckets[1].Rejected)
	assert.InDelta(t, 1.0, breakdown.Buckets[1].AcceptanceRate, 1e-9)
}

func TestMalformedMetadataSubstitutesEmptyMapping(t *testing.T) {
	store := newTestStore(t)

	_, err := store.InsertSamples([]*models.Sample{mustSample(t, "s1", "p", "r", nil)})
	require.NoError(t, err)

	_, err = store.db.Exec("UPDATE samples SET metadata = ? WHERE id = ?", "{not json", "s1")
	require.NoError(t, err)

	got, err := store.GetSample("s1")
	require.NoError(t, err, "malformed metadata must not abort reads")
	assert.Empty(t, got.Metadata)
}

func TestGetAnnotatedSamplesFilters(t *testing.T) {
	store := newTestStore(t)

	batch := []*models.Sample{
		mustSample(t, "1", "p1", "r1", nil),
		mustSample(t, "2", "p2", "r2", nil),
		mustSample(t, "3", "p3", "r3", nil),
	}
	_, err := store.InsertSamples(batch)
	require.NoError(t, err)

	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "1", true, "", "")))
	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "2", false, models.IssueIncomplete, "missing steps")))
	// Sample 3 stays unannotated and must never match.

	all, err := store.GetAnnotatedSamples(AnnotatedFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	rejected := false
	rejectedOnly, err := store.GetAnnotatedSamples(AnnotatedFilter{Decision: &rejected})
	require.NoError(t, err)
	require.Len(t, rejectedOnly, 1)
	assert.Equal(t, "2", rejectedOnly[0].Sample.ID)

	byIssue, err := store.GetSamplesByIssue(models.IssueIncomplete)
	require.NoError(t, err)
	require.Len(t, byIssue, 1)
	assert.Equal(t, "p2", byIssue[0].Sample.Prompt)
	assert.Equal(t, "missing steps", byIssue[0].Annotation.Notes)

	byOtherIssue, err := store.GetSamplesByIssue(models.IssueRefusal)
	require.NoError(t, err)
	assert.Empty(t, byOtherIssue)
}

func TestClearAll(t *testing.T) {
	store := newTestStore(t)

	batch := []*models.Sample{
		mustSample(t, "1", "p", "r", nil),
		mustSample(t, "2", "p", "r", nil),
	}
	_, err := store.InsertSamples(batch)
	require.NoError(t, err)
	require.NoError(t, store.InsertAnnotation(mustAnnotation(t, "1", true, "", "")))

	samples, annotations, err := store.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 2, samples)
	assert.Equal(t, 1, annotations)

	count, err := store.CountSamples()
	require.NoError(t, err)
	assert.Zero(t, count)
}
