package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weave/internal/asyncrt"
	"weave/internal/observ"
)

// demoRoundRobinCmd implements spec scenario 1: three tasks each looping
// print(i); yield(). After 9 yields the print sequence is 1,2,3,1,2,3,1,2,3.
var demoRoundRobinCmd = &cobra.Command{
	Use:   "roundrobin",
	Short: "Three tasks yielding in turn",
	RunE: func(cmd *cobra.Command, args []string) error {
		timer := observ.NewTimer()
		span := timer.Begin("roundrobin")

		cfg, err := resolvedConfig(cmd, asyncrt.Config{})
		if err != nil {
			return err
		}
		sched, err := asyncrt.Init(nextDemoThreadID(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Deregister() }()

		for i := 1; i <= 3; i++ {
			id := i
			sched.Spawn(func(t *asyncrt.Task, _ any) {
				for round := 0; round < 3; round++ {
					fmt.Fprintln(cmd.OutOrStdout(), id)
					t.Yield()
				}
			}, nil)
		}

		if err := sched.Run(); err != nil {
			return err
		}

		timer.End(span, "")
		reportTiming("roundrobin", timer)
		return nil
	},
}
