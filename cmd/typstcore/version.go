package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		name := color.New(color.FgCyan, color.Bold).Sprint("typstcore")
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", name, color.New(color.FgGreen).Sprint(Version))
	},
}
