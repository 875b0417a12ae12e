package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/graph"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/revlog"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// HoleView is one hole as show reports it.
type HoleView struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Type        string   `json:"type,omitempty"`
	Status      string   `json:"status"`
	Value       string   `json:"value,omitempty"`
	Constraints []string `json:"constraints"`
	Core        []string `json:"core,omitempty"`
	Unverified  bool     `json:"unverified,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Span        string   `json:"span,omitempty"`
}

// ShowResult is the state of a session's graph.
type ShowResult struct {
	Session      string        `json:"session"`
	Head         string        `json:"head,omitempty"`
	Holes        []HoleView    `json:"holes"`
	Edges        []EdgeSummary `json:"edges"`
	Order        []string      `json:"order"`
	CriticalPath []string      `json:"critical_path"`
}

func (r ShowResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\n", r.Session)
	if r.Head != "" {
		fmt.Fprintf(&b, "Head:    %s\n", shortID(r.Head))
	}
	fmt.Fprintf(&b, "\nHoles (%d):\n", len(r.Holes))
	for _, h := range r.Holes {
		fmt.Fprintf(&b, "  %-12s %-10s", h.ID, h.Status)
		if h.Value != "" {
			fmt.Fprintf(&b, " = %s", h.Value)
		}
		if h.Unverified {
			b.WriteString(" (unverified)")
		}
		b.WriteString("\n")
		for _, c := range h.Constraints {
			fmt.Fprintf(&b, "      %s\n", c)
		}
		if len(h.Core) > 0 {
			fmt.Fprintf(&b, "      core: %s\n", strings.Join(h.Core, ", "))
		}
		if len(h.Suggestions) > 0 {
			fmt.Fprintf(&b, "      suggested: %s\n", strings.Join(h.Suggestions, ", "))
		}
	}
	if len(r.Edges) > 0 {
		fmt.Fprintf(&b, "\nEdges (%d):\n", len(r.Edges))
		for _, e := range r.Edges {
			fmt.Fprintf(&b, "  %s -[%s]-> %s\n", e.From, e.Kind, e.To)
		}
	}
	fmt.Fprintf(&b, "\nOrder:         %s\n", strings.Join(r.Order, " → "))
	fmt.Fprintf(&b, "Critical path: %s", strings.Join(r.CriticalPath, " → "))
	return b.String()
}

func viewHole(h graph.Hole) HoleView {
	v := HoleView{
		ID:          h.ID,
		Kind:        h.Kind.String(),
		Type:        string(h.Type),
		Status:      h.Status.String(),
		Constraints: nonNil(h.Constraints.Strings()),
		Core:        h.Core,
		Unverified:  h.Unverified,
		Span:        h.Provenance.Span.String(),
	}
	if h.Value != nil {
		v.Value = ir.Format(h.Value)
	}
	for _, s := range h.Suggestions {
		v.Suggestions = append(v.Suggestions, ir.Format(s.Value))
	}
	return v
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session> [hole...]",
		Short: "Show a session's holes and edges",
		Long: `Show the holes of a session with their status, value and constraints,
the declared edges, a topological order and the critical path.

With hole IDs only those holes are listed.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			var result ShowResult
			err := rootOpts.withStore(func(st *store.Store) error {
				return rootOpts.view(cmd.Context(), st, args[0], func(sess *session.Session) error {
					r, err := showSession(sess, args[1:])
					result = r
					return err
				})
			})
			if err != nil {
				return formatter.Fail("show "+args[0], err)
			}
			return formatter.Success(result)
		},
	}
}

func showSession(sess *session.Session, only []string) (ShowResult, error) {
	view := sess.Graph().View()
	result := ShowResult{
		Session:      sess.ID(),
		Head:         sess.Log().Head(),
		Holes:        []HoleView{},
		Edges:        summarizeEdges(view.Edges()),
		Order:        nonNil(view.TopologicalOrder()),
		CriticalPath: nonNil(view.CriticalPath()),
	}
	if len(only) == 0 {
		for _, h := range view.Holes() {
			result.Holes = append(result.Holes, viewHole(h))
		}
		return result, nil
	}
	for _, id := range only {
		h, err := view.Hole(id)
		if err != nil {
			return ShowResult{}, err
		}
		result.Holes = append(result.Holes, viewHole(h))
	}
	return result, nil
}

// RevisionView is one revision log entry.
type RevisionView struct {
	ID         string   `json:"id"`
	Seq        int64    `json:"seq"`
	Action     string   `json:"action"`
	Hole       string   `json:"hole"`
	Propagated []string `json:"propagated,omitempty"`
	Reverts    string   `json:"reverts,omitempty"`
	Redoes     string   `json:"redoes,omitempty"`
	RevertedBy string   `json:"reverted_by,omitempty"`
	Head       bool     `json:"head,omitempty"`
}

// LogResult is a session's revision history.
type LogResult struct {
	Session   string         `json:"session"`
	Revisions []RevisionView `json:"revisions"`
	Redo      []string       `json:"redo,omitempty"`
}

func (r LogResult) String() string {
	if len(r.Revisions) == 0 {
		return fmt.Sprintf("No revisions in session %s", r.Session)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Revisions for session %s:\n", r.Session)
	for _, rev := range r.Revisions {
		marker := " "
		if rev.Head {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s [%d] %s %s %s", marker, rev.Seq, shortID(rev.ID), rev.Action, rev.Hole)
		switch {
		case rev.Reverts != "":
			fmt.Fprintf(&b, " (reverts %s)", shortID(rev.Reverts))
		case rev.Redoes != "":
			fmt.Fprintf(&b, " (redoes %s)", shortID(rev.Redoes))
		}
		if rev.RevertedBy != "" {
			fmt.Fprintf(&b, " [reverted by %s]", shortID(rev.RevertedBy))
		}
		if len(rev.Propagated) > 0 {
			fmt.Fprintf(&b, "\n       → %s", strings.Join(rev.Propagated, ", "))
		}
		b.WriteString("\n")
	}
	if len(r.Redo) > 0 {
		fmt.Fprintf(&b, "Redo: %d revision(s)\n", len(r.Redo))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func viewRevision(log *revlog.Log, st revlog.Step) RevisionView {
	v := RevisionView{
		ID:      st.ID,
		Seq:     st.Seq,
		Action:  st.Action.String(),
		Hole:    st.HoleID,
		Reverts: st.Reverts,
		Redoes:  st.Redoes,
		Head:    st.ID == log.Head(),
	}
	for _, d := range st.Propagated {
		v.Propagated = append(v.Propagated, d.ID)
	}
	if by, ok := log.RevertedBy(st.ID); ok {
		v.RevertedBy = by
	}
	return v
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log <session>",
		Short: "Show a session's revision history",
		Long: `List the revisions of a session in order, with the holes each one
propagated to and the revert and redo links between them. The current
head is marked with *.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			result := LogResult{Session: args[0], Revisions: []RevisionView{}}
			err := rootOpts.withStore(func(st *store.Store) error {
				return rootOpts.view(cmd.Context(), st, args[0], func(sess *session.Session) error {
					log := sess.Log()
					for _, step := range log.Steps() {
						result.Revisions = append(result.Revisions, viewRevision(log, step))
					}
					result.Redo = log.Undone()
					return nil
				})
			})
			if err != nil {
				return formatter.Fail("log "+args[0], err)
			}
			return formatter.Success(result)
		},
	}
}
