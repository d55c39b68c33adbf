package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"weave/internal/asyncrt"
)

// demoTimeoutCmd implements spec scenario 2: a task calling
// Select(nil, nil, false, 200ms) observes IsTimeout() true on resume, with
// elapsed wall time in [200ms, 250ms) under unloaded conditions.
var demoTimeoutCmd = &cobra.Command{
	Use:   "timeout",
	Short: "A task parked on a 200ms timeout",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolvedConfig(cmd, asyncrt.Config{})
		if err != nil {
			return err
		}
		sched, err := asyncrt.Init(nextDemoThreadID(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Deregister() }()

		out := cmd.OutOrStdout()
		sched.Spawn(func(t *asyncrt.Task, _ any) {
			start := time.Now()
			t.Select(nil, nil, false, 200)
			elapsed := time.Since(start)
			fmt.Fprintf(out, "timeout fired=%v elapsed=%s\n", t.IsTimeout(), elapsed)
		}, nil)

		return sched.Run()
	},
}
