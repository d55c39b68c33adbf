// Package config loads weave's scheduler tuning file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"weave/internal/asyncrt"
	"weave/internal/trace"
)

// Mailbox holds the [mailbox] table of weave.toml.
type Mailbox struct {
	Capacity  int `toml:"capacity"`
	EntrySize int `toml:"entry_size"`
	SpinCount int `toml:"spin_count"`
}

// Tracing holds the [tracing] table of weave.toml.
type Tracing struct {
	Level       string `toml:"level"`
	Mode        string `toml:"mode"`
	OutputPath  string `toml:"output_path"`
	RingSize    int    `toml:"ring_size"`
	HeartbeatMs int    `toml:"heartbeat_ms"`
}

// Poller holds the [poller] table of weave.toml.
type Poller struct {
	// Backend, if set, must name this build's compiled-in backend ("epoll"
	// or "kqueue"). weave never switches backends at runtime; asyncrt.Init
	// rejects a mismatch rather than silently ignoring it.
	Backend string `toml:"backend"`
}

// File is the top-level shape of weave.toml, matching the teacher's own
// BurntSushi/toml usage convention of one struct per table.
type File struct {
	Mailbox Mailbox `toml:"mailbox"`
	Tracing Tracing `toml:"tracing"`
	Poller  Poller  `toml:"poller"`
}

// Default returns the zero-config defaults weave runs with when no
// weave.toml is present.
func Default() File {
	return File{
		Mailbox: Mailbox{
			Capacity:  256,
			EntrySize: 64,
			SpinCount: 1000,
		},
		Tracing: Tracing{
			Level: "off",
			Mode:  "ring",
		},
	}
}

// Load reads and parses a weave.toml file at path.
func Load(path string) (File, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return File{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}

// SchedulerConfig converts the parsed file into an asyncrt.Config, building
// the tracer described by the [tracing] table.
func (f File) SchedulerConfig() (asyncrt.Config, error) {
	level, err := trace.ParseLevel(f.Tracing.Level)
	if err != nil {
		return asyncrt.Config{}, err
	}

	mode := trace.ModeRing
	if f.Tracing.Mode != "" {
		mode, err = trace.ParseMode(f.Tracing.Mode)
		if err != nil {
			return asyncrt.Config{}, err
		}
	}

	tracer, err := trace.New(trace.Config{
		Level:      level,
		Mode:       mode,
		OutputPath: f.Tracing.OutputPath,
		RingSize:   f.Tracing.RingSize,
		Heartbeat:  time.Duration(f.Tracing.HeartbeatMs) * time.Millisecond,
	})
	if err != nil {
		return asyncrt.Config{}, err
	}

	return asyncrt.Config{
		QueueCapacity:    f.Mailbox.Capacity,
		EntrySize:        f.Mailbox.EntrySize,
		MailboxSpinCount: f.Mailbox.SpinCount,
		Tracer:           tracer,
		PollerBackend:    f.Poller.Backend,
	}, nil
}
