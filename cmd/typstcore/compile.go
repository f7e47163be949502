package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/core"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [output]",
	Short: "Compile the root file to SVG pages or HTML",
	Long: `Compile the root file of the project. Paged output writes one SVG per
page (name-1.svg, name-2.svg, ...), HTML output a single file. The output
defaults to the root file's name next to it.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runCompile,
}

func init() {
	addProjectFlags(compileCmd)
	compileCmd.Flags().String("format", "paged", "output format (paged|svg|html)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	p, err := openProject(cmd, true)
	if err != nil {
		return err
	}
	defer p.Close()

	out, err := p.core.Compile(cmd.Context(), p.config.OutputFormat())
	var cerr *diag.CompileError
	if errors.As(err, &cerr) {
		printDiagnostics(cmd.ErrOrStderr(), p.core.Store(), cerr.Diagnostics, terminalWidth())
		return fmt.Errorf("compilation failed")
	} else if err != nil {
		return err
	}
	printDiagnostics(cmd.ErrOrStderr(), p.core.Store(), out.Warnings, terminalWidth())

	base := ""
	if len(args) == 1 {
		base = args[0]
	} else {
		rootPath := p.core.Root().Path
		base = filepath.Join(p.config.Root, filepath.FromSlash(strings.TrimSuffix(rootPath, path.Ext(rootPath))))
	}
	files, err := writeOutput(out, base)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}

// writeOutput writes out next to base, replacing base's extension.
func writeOutput(out *core.Output, base string) ([]string, error) {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if out.Format == compiler.FormatHTML {
		name := base + ".html"
		return []string{name}, os.WriteFile(name, []byte(out.HTML), 0o644)
	}
	var files []string
	for i, page := range out.SVG {
		name := base + ".svg"
		if len(out.SVG) > 1 {
			name = fmt.Sprintf("%s-%d.svg", base, i+1)
		}
		if err := os.WriteFile(name, []byte(page), 0o644); err != nil {
			return files, err
		}
		files = append(files, name)
	}
	return files, nil
}
