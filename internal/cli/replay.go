package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/engine"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// NewRevertCommand creates the revert command.
func NewRevertCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "revert <session> <revision>",
		Short: "Revert a past revision",
		Long: `Undo the changes of one revision by appending a Revert revision.

The revision may be given as an unambiguous prefix of its ID. A revision
can only be reverted while the holes it touched are unchanged; revert the
later revisions first, or branch from an earlier revision instead.`,
		Args: cobra.ExactArgs(2),
	}, func(ctx context.Context, sess *session.Session, args []string) (*engine.PassResult, error) {
		return sess.Engine().Revert(ctx, args[0])
	})
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "undo <session>",
		Short: "Revert the most recent effective revision",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, sess *session.Session, _ []string) (*engine.PassResult, error) {
		return sess.Engine().Undo(ctx)
	})
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return newPassCommand(rootOpts, &cobra.Command{
		Use:   "redo <session>",
		Short: "Re-apply the most recently undone revision",
		Long: `Re-apply the most recently undone revision.

The redo stack is cleared by any new fill, constrain, defer or reopen.`,
		Args: cobra.ExactArgs(1),
	}, func(ctx context.Context, sess *session.Session, _ []string) (*engine.PassResult, error) {
		return sess.Engine().Redo(ctx)
	})
}

// BranchResult reports a new branch session.
type BranchResult struct {
	Session  string `json:"session"`
	Origin   string `json:"origin"`
	Revision string `json:"revision"`
	Steps    int    `json:"steps"`
}

func (r BranchResult) String() string {
	return fmt.Sprintf("✓ Branched %s from %s at %s (%d revision(s))",
		r.Session, r.Origin, shortID(r.Revision), r.Steps)
}

// NewBranchCommand creates the branch command.
func NewBranchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "branch <session> <revision>",
		Short: "Start a new session from a past revision",
		Long: `Create a new session whose graph is the source session's graph as
it was right after the given revision. The source session is not
modified.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			var result BranchResult
			err := rootOpts.withStore(func(st *store.Store) error {
				return rootOpts.view(cmd.Context(), st, args[0], func(sess *session.Session) error {
					branch, err := sess.Branch(args[1])
					if err != nil {
						return err
					}
					defer branch.Close()
					if err := st.Save(cmd.Context(), branch); err != nil {
						return err
					}
					_, rev, _ := branch.Origin()
					result = BranchResult{
						Session:  branch.ID(),
						Origin:   sess.ID(),
						Revision: rev,
						Steps:    branch.Log().Len(),
					}
					return nil
				})
			})
			if err != nil {
				return formatter.Fail("branch "+strings.Join(args, " "), err)
			}
			return formatter.Success(result)
		},
	}
}
