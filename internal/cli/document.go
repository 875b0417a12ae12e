package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/ir"
	"github.com/roach88/hollow/internal/session"
	"github.com/roach88/hollow/internal/store"
)

// SessionInfo is one stored session.
type SessionInfo struct {
	ID             string `json:"id"`
	Head           string `json:"head,omitempty"`
	Steps          int    `json:"steps"`
	Version        string `json:"version"`
	OriginSession  string `json:"origin_session,omitempty"`
	OriginRevision string `json:"origin_revision,omitempty"`
}

func (s SessionInfo) String() string {
	out := fmt.Sprintf("%s  %d revision(s)", s.ID, s.Steps)
	if s.OriginSession != "" {
		out += fmt.Sprintf("  branched from %s@%s", s.OriginSession, shortID(s.OriginRevision))
	}
	return out
}

// ListResult is every stored session.
type ListResult struct {
	Sessions []SessionInfo `json:"sessions"`
}

func (r ListResult) String() string {
	if len(r.Sessions) == 0 {
		return "No sessions."
	}
	var b strings.Builder
	for _, s := range r.Sessions {
		fmt.Fprintln(&b, s)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			result := ListResult{Sessions: []SessionInfo{}}
			err := rootOpts.withStore(func(st *store.Store) error {
				infos, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, info := range infos {
					result.Sessions = append(result.Sessions, SessionInfo{
						ID:             info.ID,
						Head:           info.Head,
						Steps:          info.Steps,
						Version:        info.Version,
						OriginSession:  info.OriginSession,
						OriginRevision: info.OriginRevision,
					})
				}
				return nil
			})
			if err != nil {
				return formatter.Fail("list", err)
			}
			return formatter.Success(result)
		},
	}
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <session>",
		Short: "Write a session as a canonical JSON document",
		Long: `Write a session's holes, edges, revision log and redo stack as a
canonical JSON document. The document always goes out as-is, whatever
--format says, so it can be fed to "hollow import".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			var data []byte
			err := rootOpts.withStore(func(st *store.Store) error {
				return rootOpts.view(cmd.Context(), st, args[0], func(sess *session.Session) error {
					var err error
					data, err = sess.Serialize()
					return err
				})
			})
			if err != nil {
				return formatter.Fail("export "+args[0], err)
			}
			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return formatter.Fail("export "+args[0], WrapExitError(ExitCommandError, "writing "+output, err))
			}
			formatter.VerboseLog("Wrote %s (%d bytes)", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Store a session from an exported document",
		Long: `Restore a session from a document written by "hollow export" and store
it under the document's session ID. Use - to read standard input.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			data, err := readInput(cmd, args[0])
			if err != nil {
				return formatter.Fail("import", WrapExitError(ExitCommandError, "reading "+args[0], err))
			}
			sess, err := session.Deserialize(data, rootOpts.sessionOptions()...)
			if err != nil {
				return formatter.Fail("import", err)
			}
			defer sess.Close()

			err = rootOpts.withStore(func(st *store.Store) error {
				if _, err := st.Snapshot(cmd.Context(), sess.ID()); err == nil {
					if !replace {
						return NewExitError(ExitCommandError,
							fmt.Sprintf("session %s already exists (use --replace)", sess.ID()))
					}
					if err := st.Delete(cmd.Context(), sess.ID()); err != nil {
						return err
					}
				}
				return st.Save(cmd.Context(), sess)
			})
			if err != nil {
				return formatter.Fail("import", err)
			}
			return formatter.Success(SessionInfo{
				ID:      sess.ID(),
				Head:    sess.Log().Head(),
				Steps:   sess.Log().Len(),
				Version: ir.DocumentVersion,
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace a stored session with the same ID")

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
