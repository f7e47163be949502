package main

import (
	"fmt"
	"slices"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [flags] <@namespace/name:version>...",
	Short: "Download packages into the package cache",
	Args:  cobra.MinimumNArgs(1),
	Example: `  typstcore fetch @preview/cetz:0.3.1 @preview/tablex:0.0.8
  typstcore fetch --jobs 1 @preview/polylux:0.4.0
  typstcore fetch --refresh @preview/cetz:0.3.1`,
	SilenceUsage: true,
	RunE:         runFetch,
}

func init() {
	addProjectFlags(fetchCmd)
	fetchCmd.Flags().Int("jobs", 4, "parallel downloads")
	fetchCmd.Flags().Bool("refresh", false, "drop cached copies and download again")
}

func runFetch(cmd *cobra.Command, args []string) error {
	var specs []source.PackageSpec
	for _, a := range args {
		spec, err := source.ParsePackageSpec(a)
		if err != nil {
			return err
		}
		if !slices.Contains(specs, spec) {
			specs = append(specs, spec)
		}
	}

	p, err := openProject(cmd, false)
	if err != nil {
		return err
	}
	defer p.Close()

	resolver := p.core.Packages()
	if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
		for _, spec := range specs {
			if err := resolver.Purge(spec); err != nil {
				return err
			}
		}
	}

	jobs, _ := cmd.Flags().GetInt("jobs")
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(jobs, 1))
	var mu sync.Mutex
	for _, spec := range specs {
		g.Go(func() error {
			files, err := resolver.Resolve(ctx, spec)
			if err != nil {
				return err
			}
			entry, err := resolver.Entrypoint(ctx, spec)
			if err != nil {
				return err
			}
			mu.Lock()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, entrypoint %s\n", spec, len(files), entry.Path)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d downloaded, %d from cache\n", resolver.Fetches(), int64(len(specs))-resolver.Fetches())
	return nil
}
