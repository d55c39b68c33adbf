package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"weave/internal/asyncrt"
	"weave/internal/config"
	"weave/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "weave",
	Short: "weave green-thread runtime toolkit",
	Long:  `weave hosts and inspects a user-space cooperative scheduler of green threads.`,
}

// main registers subcommands and persistent flags, then executes the root
// command. If command execution returns an error, the process exits with
// status code 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(watchCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace verbosity (off|error|scheduler|task|debug)")
	rootCmd.PersistentFlags().String("trace-output", "-", "trace output path, - for stderr")
	rootCmd.PersistentFlags().String("config", "", "path to weave.toml (defaults built in if empty)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// resolvedConfig loads weave.toml (from the --config flag, or built-in
// defaults if unset), overlays the --trace-level/--trace-output
// persistent flags when they are set on the command line, and returns the
// asyncrt.Config a demo or watch subcommand should initialize its Scheduler
// with. Zero fields in base
// are filled from the file; nonzero fields in base win.
func resolvedConfig(cmd *cobra.Command, base asyncrt.Config) (asyncrt.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	file := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return asyncrt.Config{}, err
		}
		file = loaded
	}
	if cmd.Flags().Changed("trace-level") {
		level, _ := cmd.Flags().GetString("trace-level")
		file.Tracing.Level = level
	}
	if cmd.Flags().Changed("trace-output") {
		output, _ := cmd.Flags().GetString("trace-output")
		file.Tracing.OutputPath = output
	}

	cfg, err := file.SchedulerConfig()
	if err != nil {
		return asyncrt.Config{}, err
	}
	if base.QueueCapacity != 0 {
		cfg.QueueCapacity = base.QueueCapacity
	}
	if base.EntrySize != 0 {
		cfg.EntrySize = base.EntrySize
	}
	if base.MailboxSpinCount != 0 {
		cfg.MailboxSpinCount = base.MailboxSpinCount
	}
	return cfg, nil
}
