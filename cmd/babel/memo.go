package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/ui"
)

var memoCmd = &cobra.Command{
	Use:   "memo",
	Short: "Personal preferences outside the event log",
	Long: `A small mutable key-value store in .babel/local/. Unlike captures, memos
here are preferences, not history: they can be edited and deleted, never
enter the shared journal, and never become graph nodes.

Pinned topics surface first in status; muted nodes stop surfacing at all.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var memoSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		if err := ws.Memos.Set(args[0], args[1]); err != nil {
			fatal(err)
		}
		if !quietFlag {
			fmt.Printf("%s %s\n", ui.RenderPass("✓"), args[0])
		}
	},
}

var memoGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a preference",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		value, ok := ws.Memos.Get(args[0])
		if !ok {
			fatal(fmt.Errorf("no memo %q", args[0]))
		}
		if jsonOutput {
			outputJSON(map[string]string{args[0]: value})
			return
		}
		fmt.Println(value)
	},
}

var memoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all preferences",
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		all := ws.Memos.All()
		if jsonOutput {
			outputJSON(all)
			return
		}
		if len(all) == 0 {
			fmt.Println(ui.RenderMuted("no memos"))
			return
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %s\n", ui.RenderAccent(k), all[k])
		}
		if pinned := ws.Memos.Pinned(); len(pinned) > 0 {
			fmt.Printf("\npinned: %v\n", pinned)
		}
	},
}

var memoDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a preference",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		if err := ws.Memos.Delete(args[0]); err != nil {
			fatal(err)
		}
		if !quietFlag {
			fmt.Printf("%s deleted %s\n", ui.RenderPass("✓"), args[0])
		}
	},
}

var memoPinCmd = &cobra.Command{
	Use:   "pin <topic>",
	Short: "Pin a topic so it surfaces first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		if err := ws.Memos.Pin(args[0]); err != nil {
			fatal(err)
		}
	},
}

var memoUnpinCmd = &cobra.Command{
	Use:   "unpin <topic>",
	Short: "Unpin a topic",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		if err := ws.Memos.Unpin(args[0]); err != nil {
			fatal(err)
		}
	},
}

var memoMuteCmd = &cobra.Command{
	Use:   "mute <ref>",
	Short: "Stop a node from surfacing in status",
	Long: `Muting is a local preference: the node stays in the graph and in every
teammate's view, it just stops nagging you.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		n, err := ws.Resolve(args[0])
		if err != nil {
			fatal(err)
		}
		if err := ws.Memos.Mute(n.ID); err != nil {
			fatal(err)
		}
		if !quietFlag {
			fmt.Printf("%s muted %s\n", ui.RenderPass("✓"), n.ID)
		}
	},
}

var memoUnmuteCmd = &cobra.Command{
	Use:   "unmute <ref>",
	Short: "Let a muted node surface again",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws := mustWorkspace(cmd.Context())
		defer func() { _ = ws.Close() }()
		n, err := ws.Resolve(args[0])
		if err != nil {
			fatal(err)
		}
		if err := ws.Memos.Unmute(n.ID); err != nil {
			fatal(err)
		}
	},
}

func init() {
	memoCmd.AddCommand(memoSetCmd, memoGetCmd, memoListCmd, memoDeleteCmd,
		memoPinCmd, memoUnpinCmd, memoMuteCmd, memoUnmuteCmd)
	rootCmd.AddCommand(memoCmd)
}
