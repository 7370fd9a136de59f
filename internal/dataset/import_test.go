package dataset

import (
	"strings"
	"testing"

	"labelbench/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportCSV(t *testing.T) {
	input := `id,prompt,response,model,task_type
s1,What is 2+2?,4,gpt-4,math
s2,Capital of France?,Paris,claude,
`
	report, err := ImportCSV(strings.NewReader(input), Options{})
	require.NoError(t, err)
	require.Len(t, report.Samples, 2)
	assert.Empty(t, report.Failed)

	s1 := report.Samples[0]
	assert.Equal(t, "s1", s1.ID)
	assert.Equal(t, "What is 2+2?", s1.Prompt)
	assert.Equal(t, "4", s1.Response)
	assert.Equal(t, models.Metadata{
		"model":     models.StringMeta("gpt-4"),
		"task_type": models.StringMeta("math"),
	}, s1.Metadata)

	// Empty extra cells are omitted from metadata.
	s2 := report.Samples[1]
	assert.Equal(t, models.Metadata{"model": models.StringMeta("claude")}, s2.Metadata)
}

func TestImportCSVMissingColumns(t *testing.T) {
	input := "id,prompt\ns1,hello\n"
	_, err := ImportCSV(strings.NewReader(input), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response")
}

func TestImportCSVEmptyInput(t *testing.T) {
	_, err := ImportCSV(strings.NewReader(""), Options{})
	require.Error(t, err)
}

func TestImportCSVAbortsOnFirstInvalidRow(t *testing.T) {
	input := `id,prompt,response
s1,hello,world
bad id,hello,world
s3,hello,world
`
	_, err := ImportCSV(strings.NewReader(input), Options{OnInvalid: OnInvalidAbort})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "id", vErr.Field)
}

func TestImportCSVSkipPolicyAccountsForEveryRow(t *testing.T) {
	input := `id,prompt,response
s1,hello,world
bad id,hello,world
s3,,world
s4,hello,world
`
	report, err := ImportCSV(strings.NewReader(input), Options{OnInvalid: OnInvalidSkip})
	require.NoError(t, err)

	// inserted + failed == input rows
	assert.Len(t, report.Samples, 2)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, 2, report.Failed[0].Position)
	assert.Equal(t, 3, report.Failed[1].Position)
	assert.Contains(t, report.Failed[1].Reason, "prompt")
}

func TestImportCSVSkipPolicyCoversFieldCountMismatch(t *testing.T) {
	input := `id,prompt,response
s1,hello,world
s2,only-two-fields
s3,hello,world
`
	report, err := ImportCSV(strings.NewReader(input), Options{OnInvalid: OnInvalidSkip})
	require.NoError(t, err)
	assert.Len(t, report.Samples, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 2, report.Failed[0].Position)
	assert.Equal(t, "s2", report.Failed[0].ID)

	_, err = ImportCSV(strings.NewReader(input), Options{OnInvalid: OnInvalidAbort})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestImportCSVTruncatesOversizedText(t *testing.T) {
	long := strings.Repeat("x", 50)
	input := "id,prompt,response\ns1," + long + "," + long + "\n"

	report, err := ImportCSV(strings.NewReader(input), Options{MaxPromptChars: 10, MaxResponseChars: 20})
	require.NoError(t, err)
	require.Len(t, report.Samples, 1)
	assert.Len(t, report.Samples[0].Prompt, 10)
	assert.Len(t, report.Samples[0].Response, 20)
}

func TestImportJSON(t *testing.T) {
	input := `{
	  "samples": [
	    {"id": "s1", "prompt": "What is 2+2?", "response": "4",
	     "metadata": {"model": "gpt-4", "temp": 0.7, "cached": true}},
	    {"id": "s2", "prompt": "p", "response": "r"}
	  ]
	}`
	report, err := ImportJSON(strings.NewReader(input), Options{})
	require.NoError(t, err)
	require.Len(t, report.Samples, 2)

	md := report.Samples[0].Metadata
	assert.Equal(t, models.StringMeta("gpt-4"), md["model"])
	assert.Equal(t, models.NumberMeta(0.7), md["temp"])
	assert.Equal(t, models.BoolMeta(true), md["cached"])

	assert.Empty(t, report.Samples[1].Metadata)
}

func TestImportJSONRequiresSamplesKey(t *testing.T) {
	_, err := ImportJSON(strings.NewReader(`{"rows": []}`), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "samples")
}

func TestImportJSONRejectsNestedMetadata(t *testing.T) {
	input := `{"samples": [{"id": "s1", "prompt": "p", "response": "r",
	  "metadata": {"nested": {"a": 1}}}]}`

	_, err := ImportJSON(strings.NewReader(input), Options{OnInvalid: OnInvalidAbort})
	require.Error(t, err)

	report, err := ImportJSON(strings.NewReader(input), Options{OnInvalid: OnInvalidSkip})
	require.NoError(t, err)
	assert.Empty(t, report.Samples)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Reason, "metadata.nested")
}

func TestImportJSONMissingRequiredField(t *testing.T) {
	input := `{"samples": [{"id": "s1", "prompt": "p"}]}`
	_, err := ImportJSON(strings.NewReader(input), Options{})
	require.Error(t, err)

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "response", vErr.Field)
}
