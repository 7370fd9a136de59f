// Package service holds the annotation workbench: the complete boundary the
// presentation layer may call. The core never calls back into presentation.
package service

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"labelbench/internal/dataset"
	"labelbench/internal/models"
	"labelbench/internal/repository"

	"go.uber.org/zap"
)

// Workbench wires the store, importer/exporter and reporter into the
// operations the CLI and HTTP surface expose.
type Workbench struct {
	store      *repository.Store
	reporter   *Reporter
	logger     *zap.Logger
	importOpts dataset.Options
}

// NewWorkbench creates the boundary facade.
func NewWorkbench(store *repository.Store, importOpts dataset.Options, logger *zap.Logger) *Workbench {
	return &Workbench{
		store:      store,
		reporter:   NewReporter(store),
		logger:     logger,
		importOpts: importOpts,
	}
}

// ImportResult summarizes one import: rows inserted plus rows that failed
// validation (only populated under the skip policy).
type ImportResult struct {
	Inserted int                `json:"inserted"`
	Failed   []dataset.RowError `json:"failed,omitempty"`
}

// ImportFromFile parses and validates the file at path and inserts the
// samples in one all-or-nothing batch. Colliding ids surface as
// DuplicateIDError with nothing inserted.
func (w *Workbench) ImportFromFile(path string) (*ImportResult, error) {
	report, err := dataset.ImportFile(path, w.importOpts)
	if err != nil {
		return nil, err
	}
	return w.finishImport(report)
}

// ImportReader imports from an already-open source; filename selects the
// format by extension. Used by the upload endpoint.
func (w *Workbench) ImportReader(r io.Reader, filename string) (*ImportResult, error) {
	var report *dataset.Report
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		report, err = dataset.ImportCSV(r, w.importOpts)
	case ".json":
		report, err = dataset.ImportJSON(r, w.importOpts)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .csv or .json)", ext)
	}
	if err != nil {
		return nil, err
	}
	return w.finishImport(report)
}

func (w *Workbench) finishImport(report *dataset.Report) (*ImportResult, error) {
	inserted, err := w.store.InsertSamples(report.Samples)
	if err != nil {
		return nil, err
	}
	w.logger.Info("Import finished",
		zap.Int("inserted", inserted),
		zap.Int("failed_rows", len(report.Failed)))
	return &ImportResult{Inserted: inserted, Failed: report.Failed}, nil
}

// InsertSamples inserts pre-built samples all-or-nothing.
func (w *Workbench) InsertSamples(samples []*models.Sample) (int, error) {
	return w.store.InsertSamples(samples)
}

// GetSample retrieves one sample by id.
func (w *Workbench) GetSample(id string) (*models.Sample, error) {
	return w.store.GetSample(id)
}

// GetAllSamples returns every sample in insertion order.
func (w *Workbench) GetAllSamples() ([]models.Sample, error) {
	return w.store.GetAllSamples()
}

// GetUnannotatedSamples returns the unannotated set, freshly computed.
func (w *Workbench) GetUnannotatedSamples() ([]models.Sample, error) {
	return w.store.GetUnannotatedSamples()
}

// Annotate validates and records a decision for the given sample.
func (w *Workbench) Annotate(sampleID string, isAcceptable bool, issue models.IssueType, notes string) (*models.Annotation, error) {
	ann, err := models.NewAnnotation(sampleID, isAcceptable, issue, notes)
	if err != nil {
		return nil, err
	}
	if err := w.store.InsertAnnotation(ann); err != nil {
		return nil, err
	}
	return ann, nil
}

// GetAnnotationStats returns the cached aggregate statistics.
func (w *Workbench) GetAnnotationStats() (*models.Stats, error) {
	return w.reporter.Stats()
}

// GetBreakdownByMetadata groups accept/reject counts by a metadata key.
func (w *Workbench) GetBreakdownByMetadata(key string) (*models.Breakdown, error) {
	if strings.TrimSpace(key) == "" {
		return nil, &models.ValidationError{Field: "key", Reason: "cannot be empty"}
	}
	return w.reporter.Breakdown(key)
}

// GetSamplesByIssue returns rejected samples carrying the given issue.
func (w *Workbench) GetSamplesByIssue(issue models.IssueType) ([]models.AnnotatedSample, error) {
	if !models.ValidIssue(issue) {
		return nil, &models.ValidationError{Field: "primary_issue", Reason: "unknown issue type " + string(issue)}
	}
	return w.store.GetSamplesByIssue(issue)
}

// ExportFilter narrows an export. Decision is "accepted", "rejected" or
// empty for both; Issue is empty or one of the enumerated categories.
type ExportFilter struct {
	Decision string
	Issue    models.IssueType
}

// Validate checks the filter without touching the store.
func (f ExportFilter) Validate() error {
	_, err := f.toStoreFilter()
	return err
}

func (f ExportFilter) toStoreFilter() (repository.AnnotatedFilter, error) {
	var filter repository.AnnotatedFilter
	switch f.Decision {
	case "":
	case "accepted":
		accepted := true
		filter.Decision = &accepted
	case "rejected":
		rejected := false
		filter.Decision = &rejected
	default:
		return filter, &models.ValidationError{Field: "decision", Reason: "must be accepted, rejected or empty"}
	}
	if f.Issue != "" {
		if !models.ValidIssue(f.Issue) {
			return filter, &models.ValidationError{Field: "primary_issue", Reason: "unknown issue type " + string(f.Issue)}
		}
		filter.Issue = f.Issue
	}
	return filter, nil
}

// ExportFiltered writes matching sample/annotation pairs to out in the given
// format ("csv" or "json") and returns the number of pairs written.
// Unannotated samples never match.
func (w *Workbench) ExportFiltered(out io.Writer, format string, filter ExportFilter) (int, error) {
	storeFilter, err := filter.toStoreFilter()
	if err != nil {
		return 0, err
	}
	pairs, err := w.store.GetAnnotatedSamples(storeFilter)
	if err != nil {
		return 0, err
	}

	switch strings.ToLower(format) {
	case "csv":
		err = dataset.WriteCSV(out, pairs)
	case "json":
		err = dataset.WriteJSON(out, pairs)
	default:
		return 0, fmt.Errorf("unsupported export format %q (want csv or json)", format)
	}
	if err != nil {
		return 0, err
	}
	return len(pairs), nil
}

// ClearAll deletes every sample and annotation, returning pre-deletion
// counts.
func (w *Workbench) ClearAll() (samplesDeleted, annotationsDeleted int, err error) {
	return w.store.ClearAll()
}
