package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wolframe-project/wolframe-typstcore/internal/server"
)

var lspCmd = &cobra.Command{
	Use:          "lsp",
	Short:        "Run the language server over stdio",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	// 4 Cores
	runtime.GOMAXPROCS(4)

	log.Infof("starting typstcore language server %s", Version)
	s, err := server.NewServer(Version)
	if err != nil {
		return err
	}
	return s.RunStdio()
}
