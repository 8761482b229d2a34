package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/resolver"
	"github.com/babelhq/babel/internal/timeparsing"
	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
	"github.com/babelhq/babel/internal/workspace"
)

var whyCmd = &cobra.Command{
	Use:   "why <ref>",
	Short: "Answer why something is the way it is",
	Long: `Resolve a reference to a node and show the reasoning around it: the
event that created it, that event's causal parents, its relations, and
everything within a few hops.

The reference can be a short code (AB-12), a node id, or enough words to
find it:

  babel why CD-34
  babel why "postgres ledger"
  babel why decision_1f3a9c2e --depth 3`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		depth, _ := cmd.Flags().GetInt("depth")
		sinceStr, _ := cmd.Flags().GetString("since")
		noPager, _ := cmd.Flags().GetBool("no-pager")

		var since time.Time
		if sinceStr != "" {
			var err error
			if since, err = timeparsing.Parse(sinceStr, time.Now()); err != nil {
				fatal(fmt.Errorf("parse --since: %w", err))
			}
		}

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		rep, err := ws.Why(ctx, strings.Join(args, " "), depth)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(rep)
			if !rep.Resolved() {
				os.Exit(1)
			}
			return
		}

		if !rep.Resolved() {
			if rep.Resolution.Status == resolver.StatusAmbiguous {
				fmt.Fprintf(os.Stderr, "%q matches several nodes:\n", rep.Resolution.Input)
				for _, m := range rep.Resolution.Matches {
					fmt.Fprintf(os.Stderr, "  %s\n", nodeLine(m.Node))
				}
				fmt.Fprintln(os.Stderr, "Narrow it down or use a short code.")
			} else {
				fmt.Fprintf(os.Stderr, "Nothing matches %q; try 'babel status' to list artifacts.\n", rep.Resolution.Input)
			}
			os.Exit(1)
		}

		var b strings.Builder
		writeWhy(&b, ws.Graph.Node, rep, since)
		if err := ui.ToPager(b.String(), ui.PagerOptions{NoPager: noPager}); err != nil {
			fatal(err)
		}
	},
}

// writeWhy renders the report. lookup maps peer node ids to nodes so edges
// can show summaries, not bare ids.
func writeWhy(b *strings.Builder, lookup func(string) *types.Node, rep *workspace.WhyReport, since time.Time) {
	n := rep.Node
	fmt.Fprintln(b, nodeLine(n))
	if n.Content.Detail.What != "" {
		fmt.Fprintf(b, "  what: %s\n", n.Content.Detail.What)
	}
	if n.Content.Detail.Why != "" {
		fmt.Fprintf(b, "  why:  %s\n", n.Content.Detail.Why)
	}
	meta := fmt.Sprintf("scope %s", n.Scope)
	if n.Content.Domain != "" {
		meta = fmt.Sprintf("domain %s · %s", n.Content.Domain, meta)
	}
	fmt.Fprintf(b, "  %s\n", ui.RenderMuted(meta))

	if rep.Origin != nil {
		fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("Origin"))
		fmt.Fprintf(b, "  %s\n", eventLine(rep.Origin))
		for _, parent := range rep.Parents {
			fmt.Fprintf(b, "  %s%s\n", ui.TreeLast, eventLine(parent))
		}
	}

	writeEdges := func(title string, edges []*types.Edge, pick func(*types.Edge) string, arrow string) {
		if len(edges) == 0 {
			return
		}
		fmt.Fprintf(b, "\n%s\n", ui.RenderCategory(title))
		for _, e := range edges {
			peer := lookup(pick(e))
			if peer == nil {
				fmt.Fprintf(b, "  %s %s %s\n", string(e.Relation), arrow, pick(e))
				continue
			}
			fmt.Fprintf(b, "  %-15s %s %s\n", string(e.Relation), arrow, nodeLine(peer))
		}
	}
	writeEdges("Relations out", rep.Out, func(e *types.Edge) string { return e.TargetID }, "→")
	writeEdges("Relations in", rep.In, func(e *types.Edge) string { return e.SourceID }, "←")

	var related []*types.Node
	for _, peer := range rep.Related {
		if !since.IsZero() && peer.UpdatedAt.Before(since) {
			continue
		}
		related = append(related, peer)
	}
	if len(related) > 0 {
		fmt.Fprintf(b, "\n%s\n", ui.RenderCategory("Nearby"))
		for _, peer := range related {
			fmt.Fprintf(b, "  %s\n", nodeLine(peer))
		}
	}
}

func init() {
	whyCmd.Flags().Int("depth", 2, "Relation hops to include under Nearby")
	whyCmd.Flags().String("since", "", "Only show nearby nodes touched since (e.g. '7d', 'last tuesday')")
	whyCmd.Flags().Bool("no-pager", false, "Never pipe output through a pager")
	rootCmd.AddCommand(whyCmd)
}
