package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"labelbench/internal/models"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"
)

// Store provides durable CRUD and aggregate queries over samples and
// annotations, backed by SQLite.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore opens (creating if needed) the database at dbPath and ensures the
// schema exists.
func NewStore(dbPath string, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection at a time: the database file is the sole shared
	// resource and operations are short, so a single pooled connection is
	// acquired and released per query or transaction.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Store initialized", zap.String("db_path", dbPath))
	return s, nil
}

// migrate creates tables and indexes.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		metadata TEXT,
		imported_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_imported ON samples(imported_at);

	CREATE TABLE IF NOT EXISTS annotations (
		id TEXT PRIMARY KEY,
		sample_id TEXT NOT NULL UNIQUE,
		annotator_id TEXT NOT NULL DEFAULT 'default',
		is_acceptable BOOLEAN NOT NULL,
		primary_issue TEXT,
		notes TEXT,
		annotated_at DATETIME NOT NULL,
		FOREIGN KEY (sample_id) REFERENCES samples(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_annotations_acceptable ON annotations(is_acceptable);
	CREATE INDEX IF NOT EXISTS idx_annotations_issue ON annotations(primary_issue);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on any error.
func (s *Store) withTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	return tx.Commit()
}

type sampleRow struct {
	ID         string         `db:"id"`
	Prompt     string         `db:"prompt"`
	Response   string         `db:"response"`
	Metadata   sql.NullString `db:"metadata"`
	ImportedAt time.Time      `db:"imported_at"`
}

func (s *Store) toSample(row sampleRow) models.Sample {
	return models.Sample{
		ID:         row.ID,
		Prompt:     row.Prompt,
		Response:   row.Response,
		Metadata:   s.parseMetadata(row.ID, row.Metadata),
		ImportedAt: row.ImportedAt,
	}
}

// parseMetadata decodes stored metadata JSON. Malformed metadata is
// downgraded to a warning and an empty mapping so read paths never abort.
func (s *Store) parseMetadata(sampleID string, raw sql.NullString) models.Metadata {
	if !raw.Valid || raw.String == "" {
		return models.Metadata{}
	}
	var md models.Metadata
	if err := json.Unmarshal([]byte(raw.String), &md); err != nil {
		s.logger.Warn("Malformed metadata, substituting empty mapping",
			zap.String("sample_id", sampleID),
			zap.Error(err))
		return models.Metadata{}
	}
	return md
}

type annotationRow struct {
	ID           string         `db:"id"`
	SampleID     string         `db:"sample_id"`
	AnnotatorID  string         `db:"annotator_id"`
	IsAcceptable bool           `db:"is_acceptable"`
	PrimaryIssue sql.NullString `db:"primary_issue"`
	Notes        sql.NullString `db:"notes"`
	AnnotatedAt  time.Time      `db:"annotated_at"`
}

func toAnnotation(row annotationRow) models.Annotation {
	return models.Annotation{
		ID:           row.ID,
		SampleID:     row.SampleID,
		AnnotatorID:  row.AnnotatorID,
		IsAcceptable: row.IsAcceptable,
		PrimaryIssue: models.IssueType(row.PrimaryIssue.String),
		Notes:        row.Notes.String,
		AnnotatedAt:  row.AnnotatedAt,
	}
}

// InsertSamples inserts the batch all-or-nothing. If any id collides with an
// existing sample or repeats within the batch, nothing is inserted and the
// returned DuplicateIDError lists every colliding id. ImportedAt is assigned
// here.
func (s *Store) InsertSamples(samples []*models.Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()

	err := s.withTx(func(tx *sqlx.Tx) error {
		seen := make(map[string]bool, len(samples))
		dupSet := make(map[string]bool)
		ids := make([]string, 0, len(samples))
		for _, sample := range samples {
			if seen[sample.ID] {
				dupSet[sample.ID] = true
			}
			seen[sample.ID] = true
			ids = append(ids, sample.ID)
		}

		query, args, err := sqlx.In("SELECT id FROM samples WHERE id IN (?)", ids)
		if err != nil {
			return fmt.Errorf("failed to build collision query: %w", err)
		}
		var existing []string
		if err := tx.Select(&existing, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to check for colliding ids: %w", err)
		}
		for _, id := range existing {
			dupSet[id] = true
		}
		if len(dupSet) > 0 {
			dups := make([]string, 0, len(dupSet))
			for id := range dupSet {
				dups = append(dups, id)
			}
			sort.Strings(dups)
			return &models.DuplicateIDError{IDs: dups}
		}

		for _, sample := range samples {
			md, err := json.Marshal(sample.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", sample.ID, err)
			}
			_, err = tx.Exec(
				`INSERT INTO samples (id, prompt, response, metadata, imported_at)
				 VALUES (?, ?, ?, ?, ?)`,
				sample.ID, sample.Prompt, sample.Response, string(md), now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert sample %s: %w", sample.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, sample := range samples {
		sample.ImportedAt = now
	}

	s.logger.Info("Samples inserted", zap.Int("count", len(samples)))
	return len(samples), nil
}

// GetSample retrieves one sample by id.
func (s *Store) GetSample(id string) (*models.Sample, error) {
	var row sampleRow
	err := s.db.Get(&row, "SELECT * FROM samples WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "sample", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	sample := s.toSample(row)
	return &sample, nil
}

// GetAllSamples returns every sample in insertion order.
func (s *Store) GetAllSamples() ([]models.Sample, error) {
	var rows []sampleRow
	err := s.db.Select(&rows, "SELECT * FROM samples ORDER BY imported_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	samples := make([]models.Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, s.toSample(row))
	}
	return samples, nil
}

// GetUnannotatedSamples returns samples with no annotation, in insertion
// order. Always computed fresh from persisted state; the session layer
// depends on that for correctness.
func (s *Store) GetUnannotatedSamples() ([]models.Sample, error) {
	var rows []sampleRow
	err := s.db.Select(&rows, `
		SELECT s.id, s.prompt, s.response, s.metadata, s.imported_at
		FROM samples s
		LEFT JOIN annotations a ON s.id = a.sample_id
		WHERE a.id IS NULL
		ORDER BY s.imported_at, s.rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unannotated samples: %w", err)
	}
	samples := make([]models.Sample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, s.toSample(row))
	}
	return samples, nil
}

// CountSamples returns the total number of samples.
func (s *Store) CountSamples() (int, error) {
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM samples"); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// InsertAnnotation writes the annotation. The existence check and the
// one-annotation-per-sample check run in the same transaction as the insert,
// and a UNIQUE constraint on sample_id backstops the check.
func (s *Store) InsertAnnotation(ann *models.Annotation) error {
	err := s.withTx(func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.Get(&exists, "SELECT COUNT(*) FROM samples WHERE id = ?", ann.SampleID); err != nil {
			return fmt.Errorf("failed to check sample existence: %w", err)
		}
		if exists == 0 {
			return &models.NotFoundError{Kind: "sample", ID: ann.SampleID}
		}

		var annotated int
		if err := tx.Get(&annotated, "SELECT COUNT(*) FROM annotations WHERE sample_id = ?", ann.SampleID); err != nil {
			return fmt.Errorf("failed to check for existing annotation: %w", err)
		}
		if annotated > 0 {
			return &models.DuplicateAnnotationError{SampleID: ann.SampleID}
		}

		var issue interface{}
		if ann.PrimaryIssue != "" {
			issue = string(ann.PrimaryIssue)
		}
		_, err := tx.Exec(
			`INSERT INTO annotations (id, sample_id, annotator_id, is_acceptable, primary_issue, notes, annotated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ann.ID, ann.SampleID, ann.AnnotatorID, ann.IsAcceptable, issue, ann.Notes, ann.AnnotatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert annotation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Annotation saved",
		zap.String("sample_id", ann.SampleID),
		zap.Bool("is_acceptable", ann.IsAcceptable))
	return nil
}

// GetAnnotation retrieves the annotation for a sample, or NotFoundError if
// the sample has none.
func (s *Store) GetAnnotation(sampleID string) (*models.Annotation, error) {
	var row annotationRow
	err := s.db.Get(&row, "SELECT * FROM annotations WHERE sample_id = ?", sampleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "annotation for sample", ID: sampleID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	ann := toAnnotation(row)
	return &ann, nil
}

// CountAnnotations returns the total number of annotations.
func (s *Store) CountAnnotations() (int, error) {
	var count int
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM annotations"); err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
