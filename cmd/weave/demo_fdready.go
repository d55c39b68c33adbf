package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"weave/internal/asyncrt"
)

// demoFDReadyCmd implements spec scenario 5: a task registers a pipe read
// fd plus a 500ms timeout; a second goroutine writes one byte after 100ms.
// The reader resumes with a fired fd for the pipe and no timeout.
var demoFDReadyCmd = &cobra.Command{
	Use:   "fdready",
	Short: "Readiness wakeup racing a timeout",
	RunE: func(cmd *cobra.Command, args []string) error {
		fds := make([]int, 2)
		if err := unix.Pipe2(fds, unix.O_NONBLOCK); err != nil {
			return fmt.Errorf("pipe2: %w", err)
		}
		readFD, writeFD := fds[0], fds[1]
		defer func() {
			_ = unix.Close(readFD)
			_ = unix.Close(writeFD)
		}()

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

		go func() {
			time.Sleep(100 * time.Millisecond)
			_, _ = unix.Write(writeFD, []byte{1})
		}()

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			key := asyncrt.WaitKey{FD: readFD, Filter: asyncrt.FilterRead}
			t.Select([]asyncrt.WaitKey{key}, nil, false, 500)

			if t.IsTimeout() {
				fmt.Fprintln(out, "timed out, no readiness")
				return
			}
			ready := t.GetFDsReady()
			fmt.Fprintf(out, "fd ready: %d event(s), timeout=%v\n", len(ready), t.IsTimeout())
		}, nil)

		return sched.Run()
	},
}
