package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"weave/internal/observ"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run one of the reference scheduler scenarios",
}

func init() {
	demoCmd.AddCommand(demoRoundRobinCmd)
	demoCmd.AddCommand(demoTimeoutCmd)
	demoCmd.AddCommand(demoStreamFlowCmd)
	demoCmd.AddCommand(demoMailboxCmd)
	demoCmd.AddCommand(demoFDReadyCmd)
	demoCmd.AddCommand(demoCompositeWakeCmd)
}

// nextDemoThreadID hands out a fresh thread id for each scheduler a demo
// or watch subcommand initializes, so no two registrations in the same
// process collide.
var demoThreadID uint64

func nextDemoThreadID() uint64 {
	demoThreadID++
	return demoThreadID
}

func reportTiming(name string, timer *observ.Timer) {
	fmt.Print(timer.Summary())
	_ = name
}
