// Package dataset translates between external CSV/JSON representations and
// validated Sample records, and the reverse for export.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"labelbench/internal/models"
)

// Required input columns/fields. Anything else is folded into metadata.
var requiredColumns = []string{"id", "prompt", "response"}

// OnInvalid selects the per-row failure policy.
type OnInvalid int

const (
	// OnInvalidAbort fails the whole import on the first invalid row.
	OnInvalidAbort OnInvalid = iota
	// OnInvalidSkip skips invalid rows and reports them in the summary.
	OnInvalidSkip
)

// Options controls import behavior. Zero limits fall back to the model
// defaults.
type Options struct {
	OnInvalid        OnInvalid
	MaxPromptChars   int
	MaxResponseChars int
}

func (o Options) promptLimit() int {
	if o.MaxPromptChars > 0 {
		return o.MaxPromptChars
	}
	return models.MaxPromptChars
}

func (o Options) responseLimit() int {
	if o.MaxResponseChars > 0 {
		return o.MaxResponseChars
	}
	return models.MaxResponseChars
}

// RowError records one invalid input row.
type RowError struct {
	Position int    `json:"position"` // 1-based data row / array index +1
	ID       string `json:"id,omitempty"`
	Reason   string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Position, e.Reason)
}

// Report is the outcome of an import: parsed samples plus every row that
// failed validation. len(Samples)+len(Failed) always equals the number of
// input rows.
type Report struct {
	Samples []*models.Sample `json:"-"`
	Failed  []RowError       `json:"failed,omitempty"`
}

// ImportFile parses the file at path, dispatching on its extension (.csv or
// .json).
func ImportFile(path string, opts Options) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ImportCSV(f, opts)
	case ".json":
		return ImportJSON(f, opts)
	default:
		return nil, fmt.Errorf("unsupported file type %q (want .csv or .json)", ext)
	}
}

// buildSample normalizes one row and constructs the Sample, inheriting the
// model's validation. Oversized text is truncated rather than rejected.
func buildSample(id, prompt, response string, metadata models.Metadata, opts Options) (*models.Sample, error) {
	prompt = models.TruncateRunes(strings.TrimSpace(prompt), opts.promptLimit())
	response = models.TruncateRunes(strings.TrimSpace(response), opts.responseLimit())
	return models.NewSample(id, prompt, response, metadata)
}

// ImportCSV parses delimited text with a header row containing at least
// id,prompt,response. Extra columns become string-valued metadata; empty
// extra cells are omitted.
func ImportCSV(r io.Reader, opts Options) (*Report, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv input is empty, header row required")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	report := &Report{}
	for position := 1; ; position++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Field-count mismatches still hand back the partial record,
			// so an id may be available for the report.
			var id string
			if idx := colIndex["id"]; idx < len(record) {
				id = record[idx]
			}
			if fail := report.fail(position, id, err, opts); fail != nil {
				return nil, fail
			}
			continue
		}

		metadata := models.Metadata{}
		for name, idx := range colIndex {
			if name == "id" || name == "prompt" || name == "response" {
				continue
			}
			if idx < len(record) {
				if value := strings.TrimSpace(record[idx]); value != "" {
					metadata[name] = models.StringMeta(value)
				}
			}
		}

		sample, err := buildSample(
			record[colIndex["id"]],
			record[colIndex["prompt"]],
			record[colIndex["response"]],
			metadata, opts,
		)
		if err != nil {
			if fail := report.fail(position, record[colIndex["id"]], err, opts); fail != nil {
				return nil, fail
			}
			continue
		}
		report.Samples = append(report.Samples, sample)
	}
	return report, nil
}

type jsonDocument struct {
	Samples *[]jsonSample `json:"samples"`
}

type jsonSample struct {
	ID       string                 `json:"id"`
	Prompt   string                 `json:"prompt"`
	Response string                 `json:"response"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ImportJSON parses a document of the form {"samples": [...]} where each
// element carries id, prompt, response and an optional metadata object of
// string/number/bool values.
func ImportJSON(r io.Reader, opts Options) (*Report, error) {
	var doc jsonDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode json document: %w", err)
	}
	if doc.Samples == nil {
		return nil, fmt.Errorf("json document must contain a 'samples' array")
	}

	report := &Report{}
	for i, item := range *doc.Samples {
		position := i + 1

		metadata, err := convertMetadata(item.Metadata)
		if err != nil {
			if fail := report.fail(position, item.ID, err, opts); fail != nil {
				return nil, fail
			}
			continue
		}

		sample, err := buildSample(item.ID, item.Prompt, item.Response, metadata, opts)
		if err != nil {
			if fail := report.fail(position, item.ID, err, opts); fail != nil {
				return nil, fail
			}
			continue
		}
		report.Samples = append(report.Samples, sample)
	}
	return report, nil
}

// convertMetadata maps a decoded JSON object onto the scalar union,
// rejecting nested values.
func convertMetadata(raw map[string]interface{}) (models.Metadata, error) {
	metadata := models.Metadata{}
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			metadata[key] = models.StringMeta(v)
		case float64:
			metadata[key] = models.NumberMeta(v)
		case bool:
			metadata[key] = models.BoolMeta(v)
		case nil:
			// absent value, drop the key
		default:
			return nil, &models.ValidationError{
				Field:  "metadata." + key,
				Reason: fmt.Sprintf("must be a string, number or bool, got %T", value),
			}
		}
	}
	return metadata, nil
}

// fail records or escalates one invalid row depending on the policy. The
// returned error is non-nil only under OnInvalidAbort.
func (rep *Report) fail(position int, id string, err error, opts Options) error {
	if opts.OnInvalid == OnInvalidAbort {
		return fmt.Errorf("row %d: %w", position, err)
	}
	rep.Failed = append(rep.Failed, RowError{
		Position: position,
		ID:       strings.TrimSpace(id),
		Reason:   err.Error(),
	})
	return nil
}
