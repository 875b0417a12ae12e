package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// DeclareResult reports holes added to a session.
type DeclareResult struct {
	Session  string   `json:"session"`
	Holes    []string `json:"holes"`
	Edges    int      `json:"edges"`
	Created  bool     `json:"created"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r DeclareResult) String() string {
	verb := "Declared"
	if r.Created {
		verb = "Created session " + r.Session + ":"
	}
	s := fmt.Sprintf("✓ %s %d hole(s), %d edge(s)", verb, len(r.Holes), r.Edges)
	if !r.Created {
		s += " in " + r.Session
	}
	for _, w := range r.Warnings {
		s += "\n  warning: " + w
	}
	return s
}

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "new [file.cue]",
		Short: "Create a session, optionally declaring holes",
		Long: `Create a new session in the database and print its ID.

With a declaration file the session starts with its holes and edges.

Examples:
  hollow new pipeline.cue
  hollow new --id pipeline pipeline.cue`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			opts := rootOpts.sessionOptions()
			if id != "" {
				opts = append(opts, session.WithID(id))
			}
			sess := session.New(opts...)
			defer sess.Close()

			result := DeclareResult{Session: sess.ID(), Holes: []string{}, Created: true}
			if len(args) == 1 {
				r, err := declareFile(sess, args[0])
				if err != nil {
					return formatter.Fail("declare "+args[0], err)
				}
				result.Holes, result.Edges, result.Warnings = r.Holes, r.Edges, r.Warnings
			}

			err := rootOpts.withStore(func(st *store.Store) error {
				if _, err := st.Snapshot(cmd.Context(), sess.ID()); err == nil {
					return NewExitError(ExitCommandError, fmt.Sprintf("session %s already exists", sess.ID()))
				}
				return st.Save(cmd.Context(), sess)
			})
			if err != nil {
				return formatter.Fail("create session", err)
			}
			return formatter.Success(result)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "session ID (default: generated UUIDv7)")

	return cmd
}

// NewDeclareCommand creates the declare command.
func NewDeclareCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "declare <session> <file.cue>",
		Short: "Declare more holes in an existing session",
		Long: `Add the holes and edges of a CUE declaration to an existing session.

Edges may refer to holes already in the session. Nothing is added if
any hole or edge is rejected. Declarations are not revisions and cannot
be reverted.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			var result DeclareResult
			err := rootOpts.withStore(func(st *store.Store) error {
				return rootOpts.mutate(cmd.Context(), st, args[0], func(sess *session.Session) error {
					r, err := declareFile(sess, args[1])
					result = r
					return err
				})
			})
			if err != nil {
				return formatter.Fail("declare "+args[1], err)
			}
			return formatter.Success(result)
		},
	}
}

func declareFile(sess *session.Session, path string) (DeclareResult, error) {
	holes := sess.Graph().Holes()
	existing := make([]string, len(holes))
	for i, h := range holes {
		existing[i] = h.ID
	}
	decl, err := compileDeclaration(path, existing...)
	if err != nil {
		return DeclareResult{}, err
	}
	ids, err := sess.Declare(decl.Holes, decl.Edges)
	if err != nil {
		return DeclareResult{}, err
	}
	result := DeclareResult{Session: sess.ID(), Holes: ids, Edges: len(decl.Edges)}
	for _, w := range decl.Warnings {
		result.Warnings = append(result.Warnings, w.Message)
	}
	return result, nil
}
