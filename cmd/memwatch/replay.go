package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"memwatch/internal/model"
	"memwatch/internal/snapshot"
	"memwatch/timer"
)

func newReplayCmd(opts *options) *cobra.Command {
	var policy bool
	cmd := &cobra.Command{
		Use:   "replay <snapshot-dir>",
		Short: "Read every watcher from a captured snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			img, err := snapshot.Open(args[0], log)
			if err != nil {
				return err
			}
			defer img.Close()

			m, err := model.Build(cmd.Context(), cfg, model.SnapshotTarget(img), log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printReadings(out, m.Read()); err != nil {
				return err
			}
			if !policy {
				return nil
			}

			rec := timer.NewRecorder(timer.NotRunning)
			m.Invalidate()
			if err := m.Update(rec); err != nil {
				fmt.Fprintf(out, "policy: %v\n", err)
			}
			for _, call := range rec.Calls() {
				fmt.Fprintln(out, call)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&policy, "policy", false, "also run one policy tick and print the timer commands")
	return cmd
}

func printReadings(w io.Writer, readings []model.Reading) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range readings {
		value := r.Value
		if r.Err != nil {
			value = "error: " + r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, value)
	}
	return tw.Flush()
}
