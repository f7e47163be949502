package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var defineCmd = &cobra.Command{
	Use:   "define [flags] <file:line:column>",
	Short: "Describe the definition of the name at a position",
	Long: `Look up the name at a 1-based line and column (in UTF-16 units) of a
project file and print its declaration, documentation and parameters.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runDefine,
}

func init() {
	addProjectFlags(defineCmd)
	defineCmd.Flags().Bool("json", false, "print the result as JSON")
}

// parseLocation splits "file:line:column".
func parseLocation(s string) (source.FileID, position.Position, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return source.FileID{}, position.Position{}, fmt.Errorf("location %q is not file:line:column", s)
	}
	n := len(parts)
	line, err := strconv.Atoi(parts[n-2])
	if err != nil {
		return source.FileID{}, position.Position{}, fmt.Errorf("location %q: bad line: %w", s, err)
	}
	col, err := strconv.Atoi(parts[n-1])
	if err != nil {
		return source.FileID{}, position.Position{}, fmt.Errorf("location %q: bad column: %w", s, err)
	}
	file := strings.Join(parts[:n-2], ":")
	return source.ID(file), position.Position{Line: line, Column: col}, nil
}

func runDefine(cmd *cobra.Command, args []string) error {
	id, pos, err := parseLocation(args[0])
	if err != nil {
		return err
	}
	p, err := openProject(cmd, false)
	if err != nil {
		return err
	}
	defer p.Close()

	res, err := p.core.Definition(id, pos)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if res == nil {
		return fmt.Errorf("nothing is defined at %s", args[0])
	}
	if res.DeclarationRange != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n\n", res.File, res.DeclarationRange.Start)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Markdown())
	return nil
}
