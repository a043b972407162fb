package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"memwatch/internal/config"
	"memwatch/memory"
)

func newPathsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the configured watchers and their pointer paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, w := range cfg.Watchers {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", w.Name, w.Type, describe(cfg, w))
			}
			return tw.Flush()
		},
	}
}

// describe renders where w reads from before any module is resolved.
func describe(cfg *config.Config, w config.Watcher) string {
	chain := memory.DescribeChain(memory.Address(w.Base), config.Uint64s(w.Offsets))
	if cfg.Emulator != nil {
		return "guest " + chain
	}
	mod := w.Module
	if mod == "" {
		mod = cfg.Module
	}
	if mod == "" {
		return chain
	}
	return mod + "+" + chain
}
