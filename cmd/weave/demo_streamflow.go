package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"weave/internal/asyncrt"
)

// demoStreamFlowCmd implements spec scenario 3: a writer pushes 0..9 into a
// capacity-4 stream then pushes EOF; a reader observes 0..9 then CLOSED.
var demoStreamFlowCmd = &cobra.Command{
	Use:   "streamflow",
	Short: "Bounded stream with a single writer and reader",
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

		w, r := asyncrt.NewStream[int](sched, 4)
		out := cmd.OutOrStdout()

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			for i := 0; i < 10; i++ {
				for {
					err := w.Push(i)
					if err == nil {
						break
					}
					if errors.Is(err, asyncrt.ErrNoVacancy) {
						t.Yield()
						continue
					}
					return
				}
			}
			w.PushEOF()
			w.CloseWrite()
		}, nil)

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			for {
				v, err := r.Pop()
				if err == nil {
					fmt.Fprintln(out, v)
					continue
				}
				if errors.Is(err, asyncrt.ErrNoMoreData) {
					t.Select(nil, []*asyncrt.RingIdentity{r.Identity()}, false, 0)
					continue
				}
				if errors.Is(err, asyncrt.ErrClosed) {
					fmt.Fprintln(out, "closed")
					r.CloseRead()
					return
				}
				return
			}
		}, nil)

		return sched.Run()
	},
}
