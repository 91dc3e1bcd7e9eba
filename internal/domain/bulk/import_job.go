package bulk

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultBatchSize is the batch size used when a request does not set one.
const DefaultBatchSize = 50

// ImportOptions controls how an import treats duplicates and writes.
type ImportOptions struct {
	UpdateExisting bool `json:"updateExisting"`
	SkipDuplicates bool `json:"skipDuplicates"`
	ValidateOnly   bool `json:"validateOnly"`
	BatchSize      int  `json:"batchSize" validate:"gte=0"`
}

// ConflictMode summarizes the duplicate policy. updateExisting takes priority.
func (o ImportOptions) ConflictMode() ConflictMode {
	switch {
	case o.UpdateExisting:
		return ConflictModeUpdate
	case o.SkipDuplicates:
		return ConflictModeSkip
	}
	return ConflictModeFail
}

// ImportRequest is one import invocation.
type ImportRequest struct {
	Entity string      `json:"entity" validate:"required"`
	Format Format      `json:"format" validate:"required"`
	Data   []RawRecord `json:"data"`
	ImportOptions

	// Rows holds the origin row of each Data entry when the decoder knows it.
	// Without it rows are numbered by position.
	Rows []int `json:"-"`

	// Warnings collected while decoding the input, carried into the result.
	Warnings []string `json:"-"`
}

// SetRecords fills Data and Rows from decoded records.
func (r *ImportRequest) SetRecords(records []ImportRecord) {
	r.Data = make([]RawRecord, len(records))
	r.Rows = make([]int, len(records))
	for i, rec := range records {
		r.Data[i] = rec.Raw
		r.Rows[i] = rec.Row
	}
}

// Records tags Data with origin rows, falling back to positions when Rows
// does not line up with Data.
func (r ImportRequest) Records() []ImportRecord {
	if len(r.Rows) != len(r.Data) {
		return TagRows(r.Data)
	}
	out := make([]ImportRecord, len(r.Data))
	for i, raw := range r.Data {
		out[i] = ImportRecord{Row: r.Rows[i], Raw: raw}
	}
	return out
}

// JobState tracks the pipeline stage of an import job.
type JobState string

const (
	JobUnauthorized JobState = "unauthorized"
	JobParsed       JobState = "parsed"
	JobValidated    JobState = "validated"
	JobClassified   JobState = "classified"
	JobCommitting   JobState = "committing"
	JobCompleted    JobState = "completed"
	JobCancelled    JobState = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobState) IsTerminal() bool {
	return s == JobUnauthorized || s == JobCompleted || s == JobCancelled
}

// ImportProgress is the running tally of a job, reported after each batch.
type ImportProgress struct {
	Processed  int        `json:"processed"`
	Total      int        `json:"total"`
	Successful int        `json:"successful"`
	Failed     int        `json:"failed"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Errors     []RowError `json:"errors"`
}

// Snapshot returns a copy that is safe to hand to callbacks.
func (p ImportProgress) Snapshot() ImportProgress {
	p.Errors = append([]RowError(nil), p.Errors...)
	return p
}

// ImportJob is a single invocation of the import pipeline.
type ImportJob struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	CallerID  uuid.UUID
	Entity    string
	Format    Format
	RawCount  int
	Options   ImportOptions
	State     JobState
	Progress  ImportProgress
	Warnings  []string
	StartedAt time.Time
}

// NewImportJob creates a job for req.
func NewImportJob(orgID, callerID uuid.UUID, req ImportRequest) *ImportJob {
	opts := req.ImportOptions
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &ImportJob{
		ID:        uuid.New(),
		OrgID:     orgID,
		CallerID:  callerID,
		Entity:    req.Entity,
		Format:    req.Format,
		RawCount:  len(req.Data),
		Options:   opts,
		State:     JobParsed,
		Progress:  ImportProgress{Total: len(req.Data)},
		Warnings:  append([]string(nil), req.Warnings...),
		StartedAt: time.Now(),
	}
}

// Advance moves the job to state unless it is already terminal.
func (j *ImportJob) Advance(state JobState) {
	if j.State.IsTerminal() {
		return
	}
	j.State = state
}

// Warn appends a job-level warning.
func (j *ImportJob) Warn(msg string) {
	j.Warnings = append(j.Warnings, msg)
}

// Cancelled reports whether the job stopped before all batches ran.
func (j *ImportJob) Cancelled() bool {
	return j.State == JobCancelled
}

// ImportResult is the terminal snapshot returned to the caller.
type ImportResult struct {
	JobID          uuid.UUID  `json:"jobId"`
	Success        bool       `json:"success"`
	Cancelled      bool       `json:"cancelled"`
	TotalProcessed int        `json:"totalProcessed"`
	Successful     int        `json:"successful"`
	Failed         int        `json:"failed"`
	Created        int        `json:"created"`
	Updated        int        `json:"updated"`
	Skipped        int        `json:"skipped"`
	Errors         []RowError `json:"errors"`
	Warnings       []string   `json:"warnings"`
}

// NewImportResult assembles the result of a finished job. Errors are ordered by row.
func NewImportResult(job *ImportJob) *ImportResult {
	p := job.Progress
	errs := append([]RowError(nil), p.Errors...)
	sort.SliceStable(errs, func(i, k int) bool { return errs[i].Row < errs[k].Row })
	warnings := append([]string(nil), job.Warnings...)
	if warnings == nil {
		warnings = []string{}
	}
	if errs == nil {
		errs = []RowError{}
	}
	return &ImportResult{
		JobID:          job.ID,
		Success:        p.Failed == 0 && !job.Cancelled(),
		Cancelled:      job.Cancelled(),
		TotalProcessed: p.Processed,
		Successful:     p.Successful,
		Failed:         p.Failed,
		Created:        p.Created,
		Updated:        p.Updated,
		Skipped:        p.Skipped,
		Errors:         errs,
		Warnings:       warnings,
	}
}

// RejectedImportResult is the result of a job that never touched any record.
func RejectedImportResult(err RowError) *ImportResult {
	return &ImportResult{
		Success:  false,
		Errors:   []RowError{err},
		Warnings: []string{},
	}
}

// Disposition is the commit decision made for a classified record.
type Disposition string

const (
	DispositionCreate          Disposition = "create"
	DispositionUpdate          Disposition = "update"
	DispositionSkipDuplicate   Disposition = "skip-duplicate"
	DispositionRejectDuplicate Disposition = "reject-duplicate"
)

// Classified pairs a normalized record with its disposition.
type Classified struct {
	Record      NormalizedRecord
	Disposition Disposition
	// ExistingID is set for update dispositions.
	ExistingID uuid.UUID
	// Reason explains a reject-duplicate disposition.
	Reason *RowError
}
