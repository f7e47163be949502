package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("typstcore.cmd")

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

var rootCmd = &cobra.Command{
	Use:   "typstcore",
	Short: "Typst language server and compiler front end",
	Long: `typstcore keeps Typst sources in memory, fetches packages from the
registry and compiles documents for editors and the command line.`,
	PersistentPreRunE: setup,
}

func main() {
	rootCmd.Version = Version

	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(defineCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Int("verbose", 0, "log verbosity, 0 is quiet")
	rootCmd.PersistentFlags().String("logfile", "", "write logs to this file instead of stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup configures logging and colors from the global flags.
func setup(cmd *cobra.Command, _ []string) error {
	flags := cmd.Root().PersistentFlags()
	mode, err := flags.GetString("color")
	if err != nil {
		return err
	}
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())
	default:
		return fmt.Errorf("unknown color mode %q", mode)
	}

	verbose, err := flags.GetInt("verbose")
	if err != nil {
		return err
	}
	logfile, err := flags.GetString("logfile")
	if err != nil {
		return err
	}
	if logfile != "" {
		commonlog.Configure(verbose, &logfile)
	} else {
		commonlog.Configure(verbose, nil)
	}
	return nil
}
