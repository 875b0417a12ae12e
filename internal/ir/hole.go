package ir

import "fmt"

// HoleKind classifies what a hole stands in for. The set is closed: every
// switch over HoleKind in this module is exhaustive and has a default
// branch that panics, so adding a kind is a compile-and-test-time change at
// every match site.
type HoleKind uint8

const (
	KindTerm HoleKind = iota + 1
	KindType
	KindSpec
	KindEntity
	KindFunction
	KindModule
)

// AllKinds lists every hole kind in declaration order.
var AllKinds = []HoleKind{KindTerm, KindType, KindSpec, KindEntity, KindFunction, KindModule}

func (k HoleKind) String() string {
	switch k {
	case KindTerm:
		return "Term"
	case KindType:
		return "Type"
	case KindSpec:
		return "Spec"
	case KindEntity:
		return "Entity"
	case KindFunction:
		return "Function"
	case KindModule:
		return "Module"
	default:
		return fmt.Sprintf("HoleKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the six kinds.
func (k HoleKind) Valid() bool {
	return k >= KindTerm && k <= KindModule
}

// ParseHoleKind parses the String() form of a kind.
func ParseHoleKind(s string) (HoleKind, error) {
	for _, k := range AllKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown hole kind %q", s)
}

func (k HoleKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid hole kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *HoleKind) UnmarshalText(b []byte) error {
	v, err := ParseHoleKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// HoleStatus is the lifecycle state of a hole.
type HoleStatus uint8

const (
	StatusOpen HoleStatus = iota + 1
	StatusFilled
	StatusDeferred
	StatusConflicted
)

var allStatuses = []HoleStatus{StatusOpen, StatusFilled, StatusDeferred, StatusConflicted}

func (s HoleStatus) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusFilled:
		return "Filled"
	case StatusDeferred:
		return "Deferred"
	case StatusConflicted:
		return "Conflicted"
	default:
		return fmt.Sprintf("HoleStatus(%d)", uint8(s))
	}
}

// ParseHoleStatus parses the String() form of a status.
func ParseHoleStatus(s string) (HoleStatus, error) {
	for _, st := range allStatuses {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown hole status %q", s)
}

func (s HoleStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *HoleStatus) UnmarshalText(b []byte) error {
	v, err := ParseHoleStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// EdgeKind is the relation carried by a dependency edge.
//
//   - Blocking: the target cannot be resolved before the source.
//   - Informing: the source's value refines the target's constraints.
//   - Conflicting: source and target are mutually exclusive alternatives.
type EdgeKind uint8

const (
	EdgeBlocking EdgeKind = iota + 1
	EdgeInforming
	EdgeConflicting
)

var allEdgeKinds = []EdgeKind{EdgeBlocking, EdgeInforming, EdgeConflicting}

func (k EdgeKind) String() string {
	switch k {
	case EdgeBlocking:
		return "Blocking"
	case EdgeInforming:
		return "Informing"
	case EdgeConflicting:
		return "Conflicting"
	default:
		return fmt.Sprintf("EdgeKind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the three edge kinds.
func (k EdgeKind) Valid() bool {
	return k >= EdgeBlocking && k <= EdgeConflicting
}

// Propagates reports whether fills travel along edges of this kind.
func (k EdgeKind) Propagates() bool {
	switch k {
	case EdgeBlocking, EdgeInforming:
		return true
	case EdgeConflicting:
		return false
	default:
		panic(fmt.Sprintf("unhandled edge kind %d", uint8(k)))
	}
}

// ParseEdgeKind parses the String() form of an edge kind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	for _, k := range allEdgeKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown edge kind %q", s)
}

func (k EdgeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EdgeKind) UnmarshalText(b []byte) error {
	v, err := ParseEdgeKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Action names the mutation a revision step records.
type Action uint8

const (
	ActionFill Action = iota + 1
	ActionSplit
	ActionMerge
	ActionRevert
	ActionConstrain
	ActionDefer
	ActionReopen
)

var allActions = []Action{ActionFill, ActionSplit, ActionMerge, ActionRevert, ActionConstrain, ActionDefer, ActionReopen}

func (a Action) String() string {
	switch a {
	case ActionFill:
		return "Fill"
	case ActionSplit:
		return "Split"
	case ActionMerge:
		return "Merge"
	case ActionRevert:
		return "Revert"
	case ActionConstrain:
		return "Constrain"
	case ActionDefer:
		return "Defer"
	case ActionReopen:
		return "Reopen"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// ParseAction parses the String() form of an action.
func ParseAction(s string) (Action, error) {
	for _, a := range allActions {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}
