package main

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"weave/internal/asyncrt"
	"weave/internal/ui"
)

// watchCmd runs a mailbox workload (a producer goroutine pushing 200
// one-byte entries, a consumer task draining them) under a live TUI that
// polls the scheduler's StatsSnapshot on a fixed interval, per
// SPEC_FULL.md's CLI/TUI packaging note.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a scheduler's table occupancy live",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolvedConfig(cmd, asyncrt.Config{QueueCapacity: 64, EntrySize: 64})
		if err != nil {
			return err
		}
		sched, err := asyncrt.Init(nextDemoThreadID(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sched.Deregister() }()

		mbox := sched.Mailbox()
		go func() {
			for i := 0; i < 200; i++ {
				for {
					err := mbox.Push([]byte{byte(i)})
					if err == nil {
						break
					}
					if errors.Is(err, asyncrt.ErrNoVacancy) {
						time.Sleep(time.Millisecond)
						continue
					}
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
			mbox.Close()
		}()

		sched.Spawn(func(t *asyncrt.Task, _ any) {
			for {
				_, err := mbox.Pop()
				if err == nil {
					continue
				}
				if errors.Is(err, asyncrt.ErrNoMoreData) {
					t.Select(nil, nil, true, 0)
					continue
				}
				return
			}
		}, nil)

		snaps := make(chan asyncrt.StatsSnapshot)
		stop := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- sched.Run()
			close(stop)
		}()
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			defer close(snaps)
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					select {
					case snaps <- sched.Stats():
					case <-stop:
						return
					}
				}
			}
		}()

		model := ui.NewMonitorModel("weave mailbox watch", snaps)
		if _, err := tea.NewProgram(model).Run(); err != nil {
			return err
		}
		return <-done
	},
}
