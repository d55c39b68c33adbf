package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"weave/internal/asyncrt"
)

// demoCompositeWakeCmd implements spec scenario 6: a task registers a read
// fd, a stream, and a 1s timeout simultaneously. A second task pushes into
// the stream after its own 50ms timeout fires, so the first task resumes
// with only the stream fired; its fd registration is cleared on dispatch
// and never fires.
var demoCompositeWakeCmd = &cobra.Command{
	Use:   "compositewake",
	Short: "Composite Select over an fd, a stream, and a timeout",
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
		_ = writeFD // never written in this scenario; the fd must not fire

		cfg, err := resolvedConfig(cmd, asyncrt.Config{})
		if err != nil {
			return err
		}
		sched, err := asyncrt.Init(nextDemoThreadID(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Deregister() }()

		w, r := asyncrt.NewStream[string](sched, 1)
		out := cmd.OutOrStdout()

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			t.Select(nil, nil, false, 50)
			_ = w.Push("tick")
			w.PushEOF()
			w.CloseWrite()
		}, nil)

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			key := asyncrt.WaitKey{FD: readFD, Filter: asyncrt.FilterRead}
			t.Select([]asyncrt.WaitKey{key}, []*asyncrt.RingIdentity{r.Identity()}, false, 1000)

			fmt.Fprintf(out, "fds fired: %d, streams fired: %d, timeout: %v\n",
				len(t.GetFDsReady()), len(t.GetStreamsReady()), t.IsTimeout())

			if v, err := r.Pop(); err == nil {
				fmt.Fprintln(out, "stream value:", v)
			}
			r.CloseRead()
		}, nil)

		return sched.Run()
	},
}
