package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"memwatch/internal/process"
	"memwatch/internal/snapshot"
	"memwatch/memory"
)

func newCaptureCmd(opts *options) *cobra.Command {
	var (
		modules     []string
		regions     []string
		description string
	)
	cmd := &cobra.Command{
		Use:   "capture <snapshot-dir>",
		Short: "Dump modules and memory regions of the running game for replay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			p, err := process.Find(cfg.Process...)
			if err != nil {
				return err
			}
			defer p.Close()

			snap := &snapshot.Snapshot{
				Description: description,
				Width:       cfg.Width(),
				Modules:     map[string]memory.Address{},
			}
			for _, m := range p.Modules() {
				snap.Modules[m.Name] = m.Start
			}

			var dumps []snapshot.Region
			if len(modules) == 0 && len(regions) == 0 {
				mod, err := p.MainModule()
				if err != nil {
					return err
				}
				modules = []string{mod.Name}
			}
			for _, name := range modules {
				m, err := p.Module(name)
				if err != nil {
					return err
				}
				dumps = append(dumps, snapshot.Region{Name: m.Name, Address: m.Start, Length: m.Size()})
			}
			for _, arg := range regions {
				r, err := parseRegion(arg)
				if err != nil {
					return err
				}
				dumps = append(dumps, r)
			}

			if err := snapshot.Capture(args[0], p, snap, dumps); err != nil {
				return err
			}
			log.Info("snapshot captured", "dir", args[0], "process", p.String(), "dumps", len(dumps))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&modules, "module", "m", nil, "module to dump (default: the main module)")
	cmd.Flags().StringSliceVarP(&regions, "region", "r", nil, "extra region to dump as ADDR:LEN")
	cmd.Flags().StringVar(&description, "description", "", "description stored in the snapshot")
	return cmd
}

// parseRegion parses "ADDR:LEN", either part decimal or 0x-prefixed hex.
func parseRegion(s string) (snapshot.Region, error) {
	addr, length, ok := strings.Cut(s, ":")
	if !ok {
		return snapshot.Region{}, fmt.Errorf("region %q: want ADDR:LEN", s)
	}
	a, err := strconv.ParseUint(strings.TrimSpace(addr), 0, 64)
	if err != nil {
		return snapshot.Region{}, fmt.Errorf("region %q: address: %w", s, err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(length), 0, 64)
	if err != nil || n == 0 {
		return snapshot.Region{}, fmt.Errorf("region %q: bad length", s)
	}
	return snapshot.Region{Address: memory.Address(a), Length: n}, nil
}
