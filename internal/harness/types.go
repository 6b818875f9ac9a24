package harness

import "github.com/roach88/timeagnostic/internal/ir"

// Row is one solution: variable name to N-Triples term. Unbound variables
// are left out.
type Row map[string]string

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expect clause and every assertion hold.
	Pass bool `json:"pass"`

	RunID string `json:"run_id,omitempty"`

	// Labels are the snapshot labels the query was evaluated on.
	Labels []string `json:"labels"`

	// Snapshots holds the solutions per label.
	Snapshots map[string][]Row `json:"snapshots"`

	Entities []string `json:"entities"`
	Warnings []string `json:"warnings"`

	// ErrorCode is set when the query failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	composite *ir.Composite
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Labels:    []string{},
		Snapshots: make(map[string][]Row),
		Entities:  []string{},
		Warnings:  []string{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// newRow renders a tuple against the projected variables.
func newRow(vars []string, t ir.Tuple) Row {
	row := make(Row, len(vars))
	for i, v := range vars {
		if i < len(t) && !t[i].IsZero() {
			row[v] = t[i].String()
		}
	}
	return row
}
