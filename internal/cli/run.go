package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/eval"
	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	File   string   // read the program from a file
	Fills  []string // hole=value, applied after the run
	Submit bool     // submit discovered constraints
}

// TaskSummary is one evaluated task.
type TaskSummary struct {
	Index     int        `json:"index"`
	Input     ir.IRValue `json:"input,omitempty"`
	Value     ir.IRValue `json:"value,omitempty"`
	WaitingOn []string   `json:"waiting_on,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (t TaskSummary) String() string {
	switch {
	case t.Error != "":
		return "error: " + t.Error
	case len(t.WaitingOn) > 0:
		return "suspended on " + strings.Join(t.WaitingOn, ", ")
	case t.Value != nil:
		return ir.Format(t.Value)
	}
	return "pending"
}

// EvalResult reports a run and everything applied after it.
type EvalResult struct {
	Session    string              `json:"session"`
	Tasks      []TaskSummary       `json:"tasks"`
	Fills      []PassSummary       `json:"fills,omitempty"`
	Discovered map[string][]string `json:"discovered,omitempty"`
	Submitted  []PassSummary       `json:"submitted,omitempty"`
}

func (r EvalResult) String() string {
	var b strings.Builder
	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "task %d: %s\n", t.Index, t)
	}
	for _, p := range r.Fills {
		fmt.Fprintf(&b, "%s\n", p)
	}
	for _, id := range slices.Sorted(maps.Keys(r.Discovered)) {
		fmt.Fprintf(&b, "discovered %s: %s\n", id, strings.Join(r.Discovered[id], ", "))
	}
	for _, p := range r.Submitted {
		fmt.Fprintf(&b, "%s\n", p)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func summarizeTasks(res *eval.RunResult) []TaskSummary {
	out := make([]TaskSummary, 0, len(res.Tasks))
	for _, t := range res.Tasks {
		ts := TaskSummary{Index: t.Index, Input: t.Input, WaitingOn: t.WaitingOn}
		switch {
		case t.Err != nil:
			ts.Error = t.Err.Error()
		case !t.Suspended:
			ts.Value = t.Value
		}
		out = append(out, ts)
	}
	return out
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <session> [program] [input...]",
		Short: "Evaluate a program against the session's holes",
		Long: `Evaluate an s-expression program in the session.

Open holes referenced as ?id suspend the tasks that need them. With
inputs the program must evaluate to a function and runs once per input.
Each --fill fills a hole and resumes the suspended tasks from where they
stopped. Constraints discovered from how holes were used are reported,
and with --submit added to the holes.

Examples:
  hollow eval $SESSION '(+ ?threshold 1)' --fill threshold=10
  hollow eval $SESSION -- '(lambda (x) (if (?validate x) "ok" "rejected"))' 1 -2 3
  hollow eval $SESSION -f program.scm --submit`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, cmd, args)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the program from a file")
	cmd.Flags().StringArrayVar(&opts.Fills, "fill", nil, "fill a hole after the run (hole=value, repeatable)")
	cmd.Flags().BoolVar(&opts.Submit, "submit", false, "submit discovered constraints to the holes")

	return cmd
}

func runEval(opts *EvalOptions, cmd *cobra.Command, args []string) error {
	formatter := opts.formatter(cmd)

	sessionID, rest := args[0], args[1:]
	var program string
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return formatter.Fail("eval", WrapExitError(ExitCommandError, "reading program", err))
		}
		program = string(data)
	} else {
		if len(rest) == 0 {
			return formatter.Fail("eval", NewExitError(ExitCommandError, "a program or --file is required"))
		}
		program, rest = rest[0], rest[1:]
	}
	inputs := make([]ir.IRValue, 0, len(rest))
	for _, raw := range rest {
		v, err := ir.UnmarshalIRValue([]byte(raw))
		if err != nil {
			return formatter.Fail("eval", WrapExitError(ExitCommandError, fmt.Sprintf("invalid input %q", raw), err))
		}
		inputs = append(inputs, v)
	}
	fills, err := parseFills(opts.Fills)
	if err != nil {
		return formatter.Fail("eval", err)
	}

	result := EvalResult{Session: sessionID}
	err = opts.withStore(func(st *store.Store) error {
		return opts.mutate(cmd.Context(), st, sessionID, func(sess *session.Session) error {
			ev := sess.Evaluator()
			res, err := ev.Run(cmd.Context(), program, inputs...)
			if err != nil {
				return err
			}
			for _, f := range fills {
				r, err := ev.FillAndResume(cmd.Context(), f.hole, f.value)
				if err != nil {
					return err
				}
				result.Fills = append(result.Fills, summarizePass(sessionID, r.Pass))
				res = &r.RunResult
			}
			result.Tasks = summarizeTasks(res)
			if opts.Submit {
				passes, err := ev.Submit(cmd.Context())
				for _, p := range passes {
					result.Submitted = append(result.Submitted, summarizePass(sessionID, p))
				}
				if err != nil {
					return err
				}
			}
			result.Discovered = map[string][]string{}
			for id, set := range ev.Discovered() {
				result.Discovered[id] = set.Strings()
			}
			return nil
		})
	})
	if err != nil {
		return formatter.Fail("eval", err)
	}
	return formatter.Success(result)
}

type holeFill struct {
	hole  string
	value ir.IRValue
}

func parseFills(raw []string) ([]holeFill, error) {
	out := make([]holeFill, 0, len(raw))
	for _, r := range raw {
		hole, val, ok := strings.Cut(r, "=")
		if !ok || hole == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --fill %q: want hole=value", r))
		}
		v, err := ir.UnmarshalIRValue([]byte(val))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --fill value %q", val), err)
		}
		out = append(out, holeFill{hole: hole, value: v})
	}
	return out, nil
}
