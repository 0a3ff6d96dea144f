package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for phoneprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "phoneprobe",
		Short: "Find social platform profiles tied to a phone number",
		Long: `phoneprobe derives candidate usernames from a phone number and checks
which of them exist as public profiles on Instagram, TikTok, X and WhatsApp.

Probes are rate limited and strictly sequential per search. Pages that
answer with a login wall, CAPTCHA or rate-limit response are reported as
blocked, never as found.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .phoneprobe in current or home directory)")

	// Add subcommands
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewPlatformsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
