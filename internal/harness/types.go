package harness

// TraceEvent records one flow step: the call, its outcome and the hole
// events it emitted.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Op   string `json:"op"`
	Hole string `json:"hole,omitempty"`
	// Revision labels the step the call committed by log position.
	Revision string `json:"revision,omitempty"`
	// Outcome is "ok" or the error code.
	Outcome string   `json:"outcome"`
	Core    []string `json:"core,omitempty"`
	// Events are the hole events in emission order.
	Events []string `json:"events,omitempty"`
	// Tasks summarizes evaluator tasks after eval and resume.
	Tasks []string `json:"tasks,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one entry per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Document is the canonical serialized session after the flow.
	Document []byte `json:"-"`
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
