package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/compiler"
)

// ValidationResult is the outcome of validating a declaration.
type ValidationResult struct {
	File     string                  `json:"file"`
	Valid    bool                    `json:"valid"`
	Holes    int                     `json:"holes"`
	Edges    int                     `json:"edges"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

func (r ValidationResult) String() string {
	s := fmt.Sprintf("✓ %s is valid (%d hole(s), %d edge(s))", r.File, r.Holes, r.Edges)
	for _, w := range r.Warnings {
		s += fmt.Sprintf("\n  %s: %s", w.Level, w.Message)
	}
	return s
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.cue>",
		Short: "Validate a CUE hole declaration",
		Long: `Validate a CUE hole declaration without touching any session.

Checks hole IDs, kinds, constraint references, type-hole references,
edge endpoints and dependency cycles. Every problem is reported, not
just the first.

Exit codes:
  0 - Declaration is valid
  1 - Declaration has errors
  2 - File not found`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			decl, err := compileDeclaration(args[0])
			if err != nil {
				return formatter.Fail("validate "+args[0], err)
			}
			return formatter.Success(ValidationResult{
				File:     args[0],
				Valid:    true,
				Holes:    len(decl.Holes),
				Edges:    len(decl.Edges),
				Warnings: decl.Warnings,
			})
		},
	}
}
