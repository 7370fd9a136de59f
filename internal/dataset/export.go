package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"labelbench/internal/models"
)

// ExportColumns is the CSV export header.
var ExportColumns = []string{"id", "prompt", "response", "primary_issue", "notes", "annotated_at"}

// WriteCSV writes one row per sample/annotation pair. An empty result set
// still produces the header.
func WriteCSV(w io.Writer, pairs []models.AnnotatedSample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, pair := range pairs {
		record := []string{
			pair.Sample.ID,
			pair.Sample.Prompt,
			pair.Sample.Response,
			string(pair.Annotation.PrimaryIssue),
			pair.Annotation.Notes,
			pair.Annotation.AnnotatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", pair.Sample.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

type jsonExportAnnotation struct {
	IsAcceptable bool             `json:"is_acceptable"`
	PrimaryIssue models.IssueType `json:"primary_issue,omitempty"`
	Notes        string           `json:"notes,omitempty"`
	AnnotatedAt  time.Time        `json:"annotated_at"`
}

type jsonExportSample struct {
	ID         string               `json:"id"`
	Prompt     string               `json:"prompt"`
	Response   string               `json:"response"`
	Metadata   models.Metadata      `json:"metadata"`
	Annotation jsonExportAnnotation `json:"annotation"`
}

// WriteJSON writes the full sample/annotation join in the same document
// shape the importer accepts, with the annotation nested per sample.
func WriteJSON(w io.Writer, pairs []models.AnnotatedSample) error {
	out := struct {
		Samples []jsonExportSample `json:"samples"`
	}{Samples: make([]jsonExportSample, 0, len(pairs))}

	for _, pair := range pairs {
		out.Samples = append(out.Samples, jsonExportSample{
			ID:       pair.Sample.ID,
			Prompt:   pair.Sample.Prompt,
			Response: pair.Sample.Response,
			Metadata: pair.Sample.Metadata,
			Annotation: jsonExportAnnotation{
				IsAcceptable: pair.Annotation.IsAcceptable,
				PrimaryIssue: pair.Annotation.PrimaryIssue,
				Notes:        pair.Annotation.Notes,
				AnnotatedAt:  pair.Annotation.AnnotatedAt.UTC(),
			},
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
