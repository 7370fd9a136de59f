package service

import (
	"path/filepath"
	"testing"

	"labelbench/internal/models"
	"labelbench/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReporterFixture(t *testing.T) (*Reporter, *repository.Store) {
	t.Helper()
	store, err := repository.NewStore(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewReporter(store), store
}

func insertAnnotated(t *testing.T, store *repository.Store, id string, acceptable bool) {
	t.Helper()
	sample, err := models.NewSample(id, "p", "r", models.Metadata{"lang": models.StringMeta("en")})
	require.NoError(t, err)
	_, err = store.InsertSamples([]*models.Sample{sample})
	require.NoError(t, err)

	var ann *models.Annotation
	if acceptable {
		ann, err = models.NewAnnotation(id, true, "", "")
	} else {
		ann, err = models.NewAnnotation(id, false, models.IssueOther, "bad")
	}
	require.NoError(t, err)
	require.NoError(t, store.InsertAnnotation(ann))
}

func TestReporterZeroAnnotations(t *testing.T) {
	reporter, _ := newReporterFixture(t)

	stats, err := reporter.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAnnotated)
	assert.Zero(t, stats.AcceptanceRate)
}

func TestReporterSeesImportsWithoutAnnotations(t *testing.T) {
	reporter, store := newReporterFixture(t)

	primed, err := reporter.Stats()
	require.NoError(t, err)
	require.Zero(t, primed.TotalSamples)

	var samples []*models.Sample
	for _, id := range []string{"s1", "s2", "s3"} {
		sample, err := models.NewSample(id, "p", "r", nil)
		require.NoError(t, err)
		samples = append(samples, sample)
	}
	_, err = store.InsertSamples(samples)
	require.NoError(t, err)

	stats, err := reporter.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalSamples)
	assert.Zero(t, stats.TotalAnnotated)
}

func TestReporterCachesUntilNewAnnotation(t *testing.T) {
	reporter, store := newReporterFixture(t)
	insertAnnotated(t, store, "s1", true)

	first, err := reporter.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalAnnotated)

	again, err := reporter.Stats()
	require.NoError(t, err)
	assert.Same(t, first, again, "unchanged annotation count must hit the cache")

	b1, err := reporter.Breakdown("lang")
	require.NoError(t, err)
	b2, err := reporter.Breakdown("lang")
	require.NoError(t, err)
	assert.Same(t, b1, b2)

	insertAnnotated(t, store, "s2", false)

	updated, err := reporter.Stats()
	require.NoError(t, err)
	assert.NotSame(t, first, updated)
	assert.Equal(t, 2, updated.TotalAnnotated)
	assert.InDelta(t, 0.5, updated.AcceptanceRate, 1e-9)

	b3, err := reporter.Breakdown("lang")
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
	require.Len(t, b3.Buckets, 1)
	assert.Equal(t, 2, b3.Buckets[0].Total())
}
