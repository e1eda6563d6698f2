package harness

// TraceEvent records one query of a scenario run.
type TraceEvent struct {
	Query string `json:"query"`
	SQL   string `json:"sql"`
	Args  []any  `json:"args"`
	// Keys are the primary keys returned by SQL; sorted when the query
	// has no orderings.
	Keys []any `json:"keys"`
	// MemoryKeys are the primary keys of the in-memory evaluation, in the
	// same form as Keys.
	MemoryKeys []any `json:"-"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every query agreed and every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace records a query run.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Event returns the trace event of the named query.
func (r *Result) Event(query string) (TraceEvent, bool) {
	for _, ev := range r.Trace {
		if ev.Query == query {
			return ev, true
		}
	}
	return TraceEvent{}, false
}
