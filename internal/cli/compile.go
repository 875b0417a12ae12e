package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hollow/internal/compiler"
	"github.com/roach88/hollow/internal/graph"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// HoleSummary is a declared hole as the CLI reports it.
type HoleSummary struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind"`
	Type        string   `json:"type,omitempty"`
	Constraints []string `json:"constraints"`
	Span        string   `json:"span,omitempty"`
}

// EdgeSummary is a declared edge as the CLI reports it.
type EdgeSummary struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// DeclarationSummary is the result of compiling one CUE declaration.
type DeclarationSummary struct {
	File     string                  `json:"file"`
	Holes    []HoleSummary           `json:"holes"`
	Edges    []EdgeSummary           `json:"edges"`
	Warnings []compiler.CycleWarning `json:"warnings,omitempty"`
}

func (s DeclarationSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Compiled %s: %d hole(s), %d edge(s)", s.File, len(s.Holes), len(s.Edges))
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "\n  %s: %s", w.Level, w.Message)
	}
	return b.String()
}

func summarizeDeclaration(file string, decl *compiler.Declaration) DeclarationSummary {
	out := DeclarationSummary{
		File:     file,
		Holes:    make([]HoleSummary, 0, len(decl.Holes)),
		Edges:    summarizeEdges(decl.Edges),
		Warnings: decl.Warnings,
	}
	for _, spec := range decl.Holes {
		out.Holes = append(out.Holes, HoleSummary{
			ID:          spec.ID,
			Kind:        spec.Kind.String(),
			Type:        string(spec.Type),
			Constraints: nonNil(spec.Constraints.Strings()),
			Span:        spec.Provenance.Span.String(),
		})
	}
	return out
}

func summarizeEdges(edges []graph.Edge) []EdgeSummary {
	out := make([]EdgeSummary, 0, len(edges))
	for _, e := range edges {
		out = append(out, EdgeSummary{From: e.From, To: e.To, Kind: e.Kind.String()})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file.cue>",
		Short: "Compile a CUE hole declaration",
		Long: `Compile a CUE hole declaration and report its holes and edges.

The declaration is validated the same way "hollow validate" does it.
Cycles over Blocking and Informing edges are errors; a Conflicting edge
between holes already linked by a dependency path is reported as a
warning.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled declaration as JSON")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	decl, err := compileDeclaration(path)
	if err != nil {
		return formatter.Fail("compile "+path, err)
	}
	formatter.VerboseLog("Compiled %d hole(s) from %s", len(decl.Holes), path)

	summary := summarizeDeclaration(path, decl)
	if opts.Output != "" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return formatter.Fail("encode declaration", err)
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			return formatter.Fail("writing output file", WrapExitError(ExitCommandError, opts.Output, err))
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}
	return formatter.Success(summary)
}
