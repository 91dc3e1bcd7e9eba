package bulk

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportOptions_ConflictMode(t *testing.T) {
	assert.Equal(t, ConflictModeFail, ImportOptions{}.ConflictMode())
	assert.Equal(t, ConflictModeSkip, ImportOptions{SkipDuplicates: true}.ConflictMode())
	assert.Equal(t, ConflictModeUpdate, ImportOptions{UpdateExisting: true}.ConflictMode())
	assert.Equal(t, ConflictModeUpdate, ImportOptions{UpdateExisting: true, SkipDuplicates: true}.ConflictMode())
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"csv":             FormatCSV,
		"delimited-text":  FormatCSV,
		"JSON":            FormatJSON,
		"structured-text": FormatJSON,
		"spreadsheet":     FormatSpreadsheet,
		"pdf":             FormatDocument,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("yaml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.False(t, FormatDocument.CanImport())
	assert.True(t, FormatDocument.CanExport())
}

func TestNewImportJob_Defaults(t *testing.T) {
	job := NewImportJob(uuid.New(), uuid.New(), ImportRequest{
		Entity: "people",
		Format: FormatCSV,
		Data:   make([]RawRecord, 3),
	})
	assert.Equal(t, DefaultBatchSize, job.Options.BatchSize)
	assert.Equal(t, 3, job.RawCount)
	assert.Equal(t, 3, job.Progress.Total)
	assert.Equal(t, JobParsed, job.State)

	job.Advance(JobCancelled)
	job.Advance(JobCompleted)
	assert.Equal(t, JobCancelled, job.State, "terminal states are sticky")
}

func TestNewImportResult(t *testing.T) {
	job := NewImportJob(uuid.New(), uuid.New(), ImportRequest{Entity: "people", Format: FormatCSV})
	job.Progress = ImportProgress{
		Processed:  3,
		Successful: 1,
		Failed:     2,
		Created:    1,
		Errors: []RowError{
			{Row: 3, Message: "later"},
			{Row: 1, Field: "email", Message: "Email is required"},
		},
	}
	job.Advance(JobCompleted)

	res := NewImportResult(job)
	assert.False(t, res.Success)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 1, res.Errors[0].Row)
	assert.Equal(t, 3, res.Errors[1].Row)
	assert.Equal(t, res.TotalProcessed, res.Successful+res.Failed)
	assert.NotNil(t, res.Warnings)
}

func TestNewImportResult_CancelledIsNotSuccess(t *testing.T) {
	job := NewImportJob(uuid.New(), uuid.New(), ImportRequest{Entity: "people", Format: FormatCSV})
	job.Advance(JobCancelled)

	res := NewImportResult(job)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)
	assert.Empty(t, res.Errors)
}

func TestImportRequest_Records(t *testing.T) {
	a := RawRecord{"name": StringValue("A")}
	b := RawRecord{"name": StringValue("B")}

	var req ImportRequest
	req.SetRecords([]ImportRecord{{Row: 1, Raw: a}, {Row: 3, Raw: b}})
	require.Len(t, req.Data, 2)
	got := req.Records()
	assert.Equal(t, 1, got[0].Row)
	assert.Equal(t, 3, got[1].Row)
	assert.Equal(t, "B", got[1].Raw["name"].Str())

	positional := ImportRequest{Data: []RawRecord{a, b}}
	assert.Equal(t, []ImportRecord{{Row: 1, Raw: a}, {Row: 2, Raw: b}}, positional.Records())

	mismatched := ImportRequest{Data: []RawRecord{a, b}, Rows: []int{7}}
	assert.Equal(t, 2, mismatched.Records()[1].Row)
}
