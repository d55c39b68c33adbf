package config

import "testing"

func TestDefaultSchedulerConfig(t *testing.T) {
	cfg, err := Default().SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig: %v", err)
	}
	if cfg.QueueCapacity != 256 {
		t.Fatalf("QueueCapacity = %d, want 256", cfg.QueueCapacity)
	}
	if cfg.MailboxSpinCount != 1000 {
		t.Fatalf("MailboxSpinCount = %d, want 1000", cfg.MailboxSpinCount)
	}
	if cfg.Tracer == nil {
		t.Fatalf("expected a non-nil tracer for the off level")
	}
}

func TestSchedulerConfigRejectsBadLevel(t *testing.T) {
	f := Default()
	f.Tracing.Level = "not-a-level"
	if _, err := f.SchedulerConfig(); err == nil {
		t.Fatalf("expected an error for an invalid trace level")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/weave.toml"); err == nil {
		t.Fatalf("expected an error loading a missing file")
	}
}
