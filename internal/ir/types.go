package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TypeExpr is a hole's type annotation. It is either a type name such as
// "Int" or "List[Int]", or a reference "?T" to an unresolved Type hole.
// The empty TypeExpr means "unannotated".
type TypeExpr string

// HoleRef returns the referenced Type hole when t is of the form ?T.
func (t TypeExpr) HoleRef() (string, bool) {
	s := strings.TrimSpace(string(t))
	if len(s) > 1 && s[0] == '?' {
		return s[1:], true
	}
	return "", false
}

// Resolved reports whether t names a concrete type.
func (t TypeExpr) Resolved() bool {
	_, isRef := t.HoleRef()
	return !isRef
}

// Admits reports whether v inhabits t. Builtin names are checked
// structurally; unknown names and unresolved references admit every value
// because nothing here can decide them.
func (t TypeExpr) Admits(v IRValue) bool {
	name := strings.TrimSpace(string(t))
	if name == "" || !t.Resolved() {
		return true
	}
	base, arg, generic := strings.Cut(name, "[")
	if generic {
		arg = strings.TrimSuffix(arg, "]")
	}
	switch base {
	case "Any":
		return true
	case "Int":
		_, ok := v.(IRInt)
		return ok
	case "Bool":
		_, ok := v.(IRBool)
		return ok
	case "String":
		_, ok := v.(IRString)
		return ok
	case "Null":
		_, ok := v.(IRNull)
		return ok
	case "List":
		arr, ok := v.(IRArray)
		if !ok {
			return false
		}
		if generic {
			for _, e := range arr {
				if !TypeExpr(arg).Admits(e) {
					return false
				}
			}
		}
		return true
	case "Record", "Object", "Fn":
		_, ok := v.(IRObject)
		return ok
	default:
		return true
	}
}

// Span locates a hole in the IR producer's source.
type Span struct {
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

func (s Span) String() string {
	if s.File == "" {
		return ""
	}
	if s.EndLine > s.StartLine {
		return fmt.Sprintf("%s:%d-%d", s.File, s.StartLine, s.EndLine)
	}
	return fmt.Sprintf("%s:%d", s.File, s.StartLine)
}

// Cause records why a hole exists.
type Cause string

const (
	CauseProducer Cause = "producer"
	CauseSplit    Cause = "split"
	CauseMerge    Cause = "merge"
)

// Provenance records where a hole came from and why.
type Provenance struct {
	Span          Span   `json:"span"`
	Justification string `json:"justification,omitempty"`
	Cause         Cause  `json:"cause"`
}

// Suggestion is an externally ranked candidate value for a hole. The core
// stores suggestions opaquely and never reads them during propagation.
// Confidence is in per-mille (0..1000) to stay within integer IR values.
type Suggestion struct {
	Value      IRValue
	Rationale  string
	Confidence int
}

type suggestionJSON struct {
	Value      json.RawMessage `json:"value"`
	Rationale  string          `json:"rationale,omitempty"`
	Confidence int             `json:"confidence"`
}

func (s Suggestion) MarshalJSON() ([]byte, error) {
	val, err := MarshalIRValue(s.Value)
	if err != nil {
		return nil, fmt.Errorf("suggestion value: %w", err)
	}
	return json.Marshal(suggestionJSON{Value: val, Rationale: s.Rationale, Confidence: s.Confidence})
}

func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var raw suggestionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := UnmarshalIRValue(raw.Value)
	if err != nil {
		return fmt.Errorf("suggestion value: %w", err)
	}
	*s = Suggestion{Value: v, Rationale: raw.Rationale, Confidence: raw.Confidence}
	return nil
}
