package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/constraint"
	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// PassSummary reports one engine call.
type PassSummary struct {
	Session    string   `json:"session"`
	Action     string   `json:"action"`
	Hole       string   `json:"hole,omitempty"`
	Revision   string   `json:"revision"`
	Events     []string `json:"events"`
	AutoFilled []string `json:"auto_filled,omitempty"`
	Conflicted []string `json:"conflicted,omitempty"`
	Unverified []string `json:"unverified,omitempty"`
}

func (p PassSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ %s %s", p.Action, p.Hole)
	if p.Revision != "" {
		fmt.Fprintf(&b, " → revision %s", shortID(p.Revision))
	}
	for _, ev := range p.Events {
		fmt.Fprintf(&b, "\n  %s", ev)
	}
	return b.String()
}

func summarizePass(sessionID string, res *engine.PassResult) PassSummary {
	out := PassSummary{
		Session:    sessionID,
		Action:     strings.ToLower(res.Action.String()),
		Hole:       res.HoleID,
		Revision:   res.Revision,
		Events:     make([]string, 0, len(res.Events)),
		AutoFilled: res.AutoFilled,
		Conflicted: res.Conflicted,
		Unverified: res.Unverified,
	}
	for _, ev := range res.Events {
		out.Events = append(out.Events, ev.String())
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// passFunc runs one engine call against a loaded session.
type passFunc func(ctx context.Context, sess *session.Session, args []string) (*engine.PassResult, error)

// newPassCommand builds a command that loads a session, makes one engine
// call, saves the session and reports the pass.
func newPassCommand(rootOpts *RootOptions, cmd *cobra.Command, run passFunc) *cobra.Command {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		formatter := rootOpts.formatter(cmd)
		var res *engine.PassResult
		err := rootOpts.withStore(func(st *store.Store) error {
			return rootOpts.mutate(cmd.Context(), st, args[0], func(sess *session.Session) error {
				var err error
				res, err = run(cmd.Context(), sess, args[1:])
				return err
			})
		})
		if err != nil {
			return formatter.Fail(cmd.Name()+" "+strings.Join(args, " "), err)
		}
		formatter.VerboseLog("Visited %d dependent(s)", res.Visited)
		return formatter.Success(summarizePass(args[0], res))
	}
	return cmd
}

// NewFillCommand creates the fill command.
func NewFillCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "fill <session> <hole> <value>",
		Short: "Fill an open hole with a value",
		Long: `Fill an open hole and propagate the value to its dependents.

The value is JSON: 5, "text", true, [1, 2] or {"k": 1}. Floats are
rejected. Dependents whose constraints now pin a single
value are auto-filled; dependents whose constraints became
unsatisfiable are marked Conflicted.

Examples:
  hollow fill $SESSION threshold 10
  hollow fill $SESSION mode '"strict"'`,
		Args: cobra.ExactArgs(3),
	}, func(ctx context.Context, sess *session.Session, args []string) (*engine.PassResult, error) {
		v, err := ir.UnmarshalIRValue([]byte(args[1]))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid value %q", args[1]), err)
		}
		return sess.Engine().Fill(ctx, args[0], v)
	})
}

// NewConstrainCommand creates the constrain command.
func NewConstrainCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "constrain <session> <hole> <predicate>...",
		Short: "Add predicates to a hole",
		Long: `Add one or more predicates to a hole and propagate them.

Predicates use the same expression syntax as declarations, for example
"threshold > 0" or "member(mode, [\"fast\", \"safe\"])".`,
		Args: cobra.MinimumNArgs(3),
	}, func(ctx context.Context, sess *session.Session, args []string) (*engine.PassResult, error) {
		preds := make([]constraint.Predicate, 0, len(args)-1)
		for _, src := range args[1:] {
			p, err := constraint.ParsePredicate(src)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid predicate %q", src), err)
			}
			preds = append(preds, p)
		}
		return sess.Engine().Constrain(ctx, args[0], preds...)
	})
}

// NewDeferCommand creates the defer command.
func NewDeferCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "defer <session> <hole>",
		Short: "Mark an open hole as deferred",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, sess *session.Session, args []string) (*engine.PassResult, error) {
		return sess.Engine().Defer(ctx, args[0])
	})
}

// NewReopenCommand creates the reopen command.
func NewReopenCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "reopen <session> <hole>",
		Short: "Reopen a deferred hole",
		Args:  cobra.ExactArgs(2),
	}, func(ctx context.Context, sess *session.Session, args []string) (*engine.PassResult, error) {
		return sess.Engine().Reopen(ctx, args[0])
	})
}
