package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios declare holes from CUE files, run a flow of engine operations
// and assert on the resulting trace and final graph.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE hole declaration files to compile and declare.
	// Paths are relative to the scenario file location.
	Specs []string `yaml:"specs"`

	// Setup runs before the flow. Setup ops must succeed and are not
	// traced.
	Setup []Op `yaml:"setup,omitempty"`

	// Flow is the traced sequence of operations.
	Flow []Op `yaml:"flow"`

	// Assertions validate the final trace and graph.
	Assertions []Assertion `yaml:"assertions"`

	// SessionID fixes the session ID. Defaults to "test-session".
	SessionID string `yaml:"session_id,omitempty"`
}

// Operation names.
const (
	OpFill      = "fill"
	OpConstrain = "constrain"
	OpDefer     = "defer"
	OpReopen    = "reopen"
	OpRevert    = "revert"
	OpUndo      = "undo"
	OpRedo      = "redo"
	OpEval      = "eval"
	OpResume    = "resume"
	OpSubmit    = "submit"
)

// Op is one engine or evaluator call.
type Op struct {
	// Op is the operation name (fill, constrain, revert, eval, ...).
	Op string `yaml:"op"`

	// Hole is the target hole (fill, constrain, defer, reopen, resume).
	Hole string `yaml:"hole,omitempty"`

	// Value is the fill value, converted to an IR value.
	Value any `yaml:"value,omitempty"`

	// Constraints are predicate sources for constrain.
	Constraints []string `yaml:"constraints,omitempty"`

	// Step selects, for revert, the flow step whose revision is reverted.
	Step *int `yaml:"step,omitempty"`

	// Revision is an explicit revision ID prefix for revert.
	Revision string `yaml:"revision,omitempty"`

	// Program and Inputs drive eval.
	Program string `yaml:"program,omitempty"`
	Inputs  []any  `yaml:"inputs,omitempty"`

	// Expect validates the call's outcome. If nil, the call must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes an operation's expected outcome.
type Expect struct {
	// Error is the expected error code (CONFLICT, VALIDATION, STATE, ...).
	// Empty means success.
	Error string `yaml:"error,omitempty"`

	// Core is the expected unsat core of a CONFLICT, in any order.
	Core []string `yaml:"core,omitempty"`

	// AutoFilled and Conflicted list dependents in processing order.
	AutoFilled []string `yaml:"auto_filled,omitempty"`
	Conflicted []string `yaml:"conflicted,omitempty"`

	// Events is the expected number of events the call emitted.
	Events *int `yaml:"events,omitempty"`
}

// Assertion validates trace or final graph state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "hole_status": Hole has Status
	// - "hole_value": Hole holds Value
	// - "hole_constraints": Hole's constraints equal Constraints
	// - "event_order": Events appear in this order (subsequence)
	// - "revision_count": The log holds Count steps
	// - "trace_entries": Hole's evaluation trace has Count entries
	// - "trace_discovered": Hole's trace discovered every Constraints entry
	Type string `yaml:"type"`

	Hole        string   `yaml:"hole,omitempty"`
	Status      string   `yaml:"status,omitempty"`
	Value       any      `yaml:"value,omitempty"`
	Constraints []string `yaml:"constraints,omitempty"`
	Events      []string `yaml:"events,omitempty"`
	Count       int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertHoleStatus      = "hole_status"
	AssertHoleValue       = "hole_value"
	AssertHoleConstraints = "hole_constraints"
	AssertEventOrder      = "event_order"
	AssertRevisionCount   = "revision_count"
	AssertTraceEntries    = "trace_entries"
	AssertTraceDiscovered = "trace_discovered"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec
// paths relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, op := range s.Setup {
		if err := validateOp(op, -1); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, op := range s.Flow {
		if err := validateOp(op, i); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateOp checks one op. flowIndex is -1 for setup ops, which cannot
// reference flow steps.
func validateOp(op Op, flowIndex int) error {
	switch op.Op {
	case OpFill, OpResume:
		if op.Hole == "" {
			return fmt.Errorf("hole is required for %s", op.Op)
		}
		if op.Value == nil {
			return fmt.Errorf("value is required for %s", op.Op)
		}
	case OpConstrain:
		if op.Hole == "" || len(op.Constraints) == 0 {
			return fmt.Errorf("hole and constraints are required for constrain")
		}
	case OpDefer, OpReopen:
		if op.Hole == "" {
			return fmt.Errorf("hole is required for %s", op.Op)
		}
	case OpRevert:
		switch {
		case op.Step == nil && op.Revision == "":
			return fmt.Errorf("step or revision is required for revert")
		case op.Step != nil && (flowIndex < 0 || *op.Step < 0 || *op.Step >= flowIndex):
			return fmt.Errorf("step %d must name an earlier flow step", *op.Step)
		}
	case OpEval:
		if op.Program == "" {
			return fmt.Errorf("program is required for eval")
		}
	case OpUndo, OpRedo, OpSubmit:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHoleStatus:
		if a.Hole == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: hole and status are required for hole_status", index)
		}
	case AssertHoleValue:
		if a.Hole == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: hole and value are required for hole_value", index)
		}
	case AssertHoleConstraints, AssertTraceEntries:
		if a.Hole == "" {
			return fmt.Errorf("assertions[%d]: hole is required for %s", index, a.Type)
		}
	case AssertTraceDiscovered:
		if a.Hole == "" || len(a.Constraints) == 0 {
			return fmt.Errorf("assertions[%d]: hole and constraints are required for trace_discovered", index)
		}
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertRevisionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for revision_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
