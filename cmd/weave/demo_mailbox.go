package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"

	"weave/internal/asyncrt"
)

// mailboxEntry is the fixed-shape payload pushed across the mailbox, wire-
// encoded with msgpack so the producer side does not need to know the
// consumer's in-process representation.
type mailboxEntry struct {
	Seq int `msgpack:"seq"`
}

// demoMailboxCmd implements spec scenario 4: a consumer task blocks in
// Select(waitThreadQueue=true) on scheduler thread A while a separate OS
// thread B pushes 1000 fixed-size entries; A observes all 1000 in FIFO
// order.
var demoMailboxCmd = &cobra.Command{
	Use:   "mailbox",
	Short: "Cross-thread mailbox delivering 1000 ordered entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		const n = 1000

		cfg, err := resolvedConfig(cmd, asyncrt.Config{QueueCapacity: 64, EntrySize: 64})
		if err != nil {
			return err
		}
		sched, err := asyncrt.Init(nextDemoThreadID(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Deregister() }()

		out := cmd.OutOrStdout()
		mbox := sched.Mailbox()

		var g errgroup.Group
		g.Go(func() error {
			for i := 0; i < n; i++ {
				payload, err := msgpack.Marshal(mailboxEntry{Seq: i})
				if err != nil {
					return err
				}
				for {
					err := mbox.Push(payload)
					if err == nil {
						break
					}
					if errors.Is(err, asyncrt.ErrNoVacancy) {
						continue
					}
					return err
				}
			}
			mbox.Close()
			return nil
		})

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			want := 0
			for want < n {
				raw, err := mbox.Pop()
				if err == nil {
					var entry mailboxEntry
					if err := msgpack.Unmarshal(raw, &entry); err != nil {
						fmt.Fprintln(out, "decode error:", err)
						return
					}
					if entry.Seq != want {
						fmt.Fprintf(out, "out of order: got %d want %d\n", entry.Seq, want)
						return
					}
					want++
					continue
				}
				if errors.Is(err, asyncrt.ErrNoMoreData) {
					t.Select(nil, nil, true, 0)
					continue
				}
				fmt.Fprintln(out, "mailbox error:", err)
				return
			}
			fmt.Fprintf(out, "received %d entries in order\n", want)
		}, nil)

		if err := sched.Run(); err != nil {
			return err
		}
		return g.Wait()
	},
}
