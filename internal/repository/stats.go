package repository

import (
	"database/sql"
	"fmt"
	"sort"

	"labelbench/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// GetAnnotationStats aggregates totals, accept/reject counts and the
// per-issue distribution over the samples/annotations join.
func (s *Store) GetAnnotationStats() (*models.Stats, error) {
	stats := &models.Stats{IssueCounts: make(map[models.IssueType]int)}

	if err := s.db.Get(&stats.TotalSamples, "SELECT COUNT(*) FROM samples"); err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}

	var row struct {
		Total    int `db:"total"`
		Accepted int `db:"accepted"`
		Rejected int `db:"rejected"`
	}
	err := s.db.Get(&row, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_acceptable = 1 THEN 1 ELSE 0 END), 0) AS accepted,
			COALESCE(SUM(CASE WHEN is_acceptable = 0 THEN 1 ELSE 0 END), 0) AS rejected
		FROM annotations`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate annotations: %w", err)
	}
	stats.TotalAnnotated = row.Total
	stats.Accepted = row.Accepted
	stats.Rejected = row.Rejected
	if stats.TotalAnnotated > 0 {
		stats.AcceptanceRate = float64(stats.Accepted) / float64(stats.TotalAnnotated)
	}

	rows, err := s.db.Query(`
		SELECT primary_issue, COUNT(*)
		FROM annotations
		WHERE is_acceptable = 0 AND primary_issue IS NOT NULL AND primary_issue != ''
		GROUP BY primary_issue`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate issues: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var issue string
		var count int
		if err := rows.Scan(&issue, &count); err != nil {
			return nil, fmt.Errorf("failed to scan issue count: %w", err)
		}
		stats.IssueCounts[models.IssueType(issue)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read issue counts: %w", err)
	}

	return stats, nil
}

// GetBreakdownByMetadata groups accept/reject counts by the value of one
// metadata key across annotated samples. Samples whose metadata lacks the
// key are skipped; buckets are ordered by size, then value.
func (s *Store) GetBreakdownByMetadata(key string) (*models.Breakdown, error) {
	rows, err := s.db.Queryx(`
		SELECT s.id, s.metadata, a.is_acceptable
		FROM samples s
		JOIN annotations a ON s.id = a.sample_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotated samples: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]*models.BreakdownBucket)
	for rows.Next() {
		var id string
		var metadata sql.NullString
		var acceptable bool
		if err := rows.Scan(&id, &metadata, &acceptable); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		md := s.parseMetadata(id, metadata)
		value, ok := md[key]
		if !ok {
			continue
		}
		bucket := counts[value.String()]
		if bucket == nil {
			bucket = &models.BreakdownBucket{Value: value.String()}
			counts[value.String()] = bucket
		}
		if acceptable {
			bucket.Accepted++
		} else {
			bucket.Rejected++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metadata rows: %w", err)
	}

	breakdown := &models.Breakdown{Key: key, Buckets: make([]models.BreakdownBucket, 0, len(counts))}
	for _, bucket := range counts {
		if total := bucket.Total(); total > 0 {
			bucket.AcceptanceRate = float64(bucket.Accepted) / float64(total)
		}
		breakdown.Buckets = append(breakdown.Buckets, *bucket)
	}
	sort.Slice(breakdown.Buckets, func(i, j int) bool {
		bi, bj := breakdown.Buckets[i], breakdown.Buckets[j]
		if bi.Total() != bj.Total() {
			return bi.Total() > bj.Total()
		}
		return bi.Value < bj.Value
	})
	return breakdown, nil
}

// AnnotatedFilter narrows the samples/annotations join. A nil Decision
// matches both accepted and rejected; an empty Issue matches every issue.
type AnnotatedFilter struct {
	Decision *bool
	Issue    models.IssueType
}

// GetAnnotatedSamples returns joined sample/annotation pairs matching the
// filter, most recently annotated first. Unannotated samples never match.
func (s *Store) GetAnnotatedSamples(filter AnnotatedFilter) ([]models.AnnotatedSample, error) {
	query := `
		SELECT
			s.id, s.prompt, s.response, s.metadata, s.imported_at,
			a.id AS ann_id, a.sample_id, a.annotator_id, a.is_acceptable,
			a.primary_issue, a.notes, a.annotated_at
		FROM samples s
		JOIN annotations a ON s.id = a.sample_id`
	var args []interface{}
	var conds []string
	if filter.Decision != nil {
		conds = append(conds, "a.is_acceptable = ?")
		args = append(args, *filter.Decision)
	}
	if filter.Issue != "" {
		conds = append(conds, "a.primary_issue = ?")
		args = append(args, string(filter.Issue))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY a.annotated_at DESC, s.rowid"

	rows, err := s.db.Queryx(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query annotated samples: %w", err)
	}
	defer rows.Close()

	var results []models.AnnotatedSample
	for rows.Next() {
		var r struct {
			sampleRow
			AnnID        string         `db:"ann_id"`
			SampleID     string         `db:"sample_id"`
			AnnotatorID  string         `db:"annotator_id"`
			IsAcceptable bool           `db:"is_acceptable"`
			PrimaryIssue sql.NullString `db:"primary_issue"`
			Notes        sql.NullString `db:"notes"`
			AnnotatedAt  sql.NullTime   `db:"annotated_at"`
		}
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan annotated sample: %w", err)
		}
		results = append(results, models.AnnotatedSample{
			Sample: s.toSample(r.sampleRow),
			Annotation: models.Annotation{
				ID:           r.AnnID,
				SampleID:     r.SampleID,
				AnnotatorID:  r.AnnotatorID,
				IsAcceptable: r.IsAcceptable,
				PrimaryIssue: models.IssueType(r.PrimaryIssue.String),
				Notes:        r.Notes.String,
				AnnotatedAt:  r.AnnotatedAt.Time,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read annotated samples: %w", err)
	}
	return results, nil
}

// GetSamplesByIssue returns every rejected sample carrying the given issue.
func (s *Store) GetSamplesByIssue(issue models.IssueType) ([]models.AnnotatedSample, error) {
	rejected := false
	return s.GetAnnotatedSamples(AnnotatedFilter{Decision: &rejected, Issue: issue})
}

// ClearAll deletes every sample and annotation, returning the pre-deletion
// counts.
func (s *Store) ClearAll() (samplesDeleted, annotationsDeleted int, err error) {
	err = s.withTx(func(tx *sqlx.Tx) error {
		if err := tx.Get(&annotationsDeleted, "SELECT COUNT(*) FROM annotations"); err != nil {
			return fmt.Errorf("failed to count annotations: %w", err)
		}
		if err := tx.Get(&samplesDeleted, "SELECT COUNT(*) FROM samples"); err != nil {
			return fmt.Errorf("failed to count samples: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM annotations"); err != nil {
			return fmt.Errorf("failed to delete annotations: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM samples"); err != nil {
			return fmt.Errorf("failed to delete samples: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	s.logger.Info("Cleared all data",
		zap.Int("samples_deleted", samplesDeleted),
		zap.Int("annotations_deleted", annotationsDeleted))
	return samplesDeleted, annotationsDeleted, nil
}
