// Package index defines the outcome types of an indexing invocation.
package index

import "time"

// MaxReportedErrors bounds the error list carried in a Report so a large
// failing batch cannot balloon the response payload.
const MaxReportedErrors = 25

// ChangeType is the mutation kind delivered on the webhook path.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Valid reports whether the change type is one of insert/update/delete.
func (c ChangeType) Valid() bool {
	switch c {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// Report counts the outcome of one indexing invocation. Per-record failures
// are recorded here instead of aborting the run.
type Report struct {
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Deleted  int           `json:"deleted"`
	Skipped  int           `json:"skipped"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"-"`
	TookMS   int64         `json:"took_ms"`
}

// AddError appends an error message, dropping it once the bound is reached.
func (r *Report) AddError(msg string) {
	if len(r.Errors) < MaxReportedErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// Finish stamps the duration fields.
func (r *Report) Finish(start time.Time) {
	r.Duration = time.Since(start)
	r.TookMS = r.Duration.Milliseconds()
}
