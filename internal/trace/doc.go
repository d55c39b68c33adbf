// Package trace provides a tracing subsystem for the weave runtime.
//
// The trace package enables tracking of scheduler loop iterations, task
// lifecycle, and readiness/mailbox events to help diagnose stalls and
// performance issues in a running scheduler.
//
// # Usage
//
// Enable tracing via the CLI's persistent flags, with a weave.toml (passed
// by --config) whose [tracing] mode is "stream" or "both"; the default mode,
// "ring", keeps events in memory and writes nothing to the output:
//
//	weave watch --config=weave.toml --trace-output=- --trace-level=task
//
// # Architecture
//
// The package provides several tracer implementations:
//
//   - NopTracer: Zero-overhead no-op tracer when disabled
//   - StreamTracer: Immediate write to output (file/stderr)
//   - RingTracer: Circular buffer for crash dumps
//   - MultiTracer: Combines multiple tracers
//
// # Levels
//
// Tracing verbosity is controlled by levels:
//
//   - LevelOff: No tracing
//   - LevelError: Only crash dumps
//   - LevelScheduler: Runtime and scheduler-loop boundaries
//   - LevelTask: Task-level events
//   - LevelDebug: Everything including individual readiness events
//
// # Scopes
//
// Events are categorized by scope:
//
//   - ScopeRuntime: Top-level Init/Run/Deregister operations
//   - ScopeScheduler: Main-loop iteration boundaries
//   - ScopeTask: Per-task spawn/select/stop events
//   - ScopeEvent: Individual readiness/mailbox/timeout events
//
// # Context Propagation
//
// Tracers are propagated via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeTask, "spawn", parentID)
//	defer span.End("")
package trace
