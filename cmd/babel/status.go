package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/timeparsing"
	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the project's reasoning state",
	Long: `Show what babel knows: journal and graph counts, the active purpose,
open questions, unresolved tensions and pending proposals.`,
	Run: func(cmd *cobra.Command, args []string) {
		sinceStr, _ := cmd.Flags().GetString("since")

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

		rep, err := ws.Status(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(rep)
			return
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s %s\n", ui.RenderCategory("babel"), ui.RenderMuted(rep.Root))
		if rep.Project != nil {
			fmt.Fprintf(&b, "project  %s %s\n", rep.Project.Content.Summary, ui.RenderShortCode(idgen.Encode(rep.Project.ID)))
		} else {
			fmt.Fprintln(&b, ui.RenderWarn("no project; run 'babel init' first"))
		}
		if rep.Purpose != nil {
			fmt.Fprintf(&b, "purpose  %s %s\n", rep.Purpose.Content.Summary, ui.RenderShortCode(idgen.Encode(rep.Purpose.ID)))
		}
		if len(rep.PinnedTopics) > 0 {
			fmt.Fprintf(&b, "pinned   %s\n", strings.Join(rep.PinnedTopics, ", "))
		}

		fmt.Fprintf(&b, "\njournal  %d shared · %d local", rep.SharedEvents, rep.LocalEvents)
		if rep.Conflicts > 0 || rep.CorruptLines > 0 {
			fmt.Fprintf(&b, "  %s", ui.RenderFail(fmt.Sprintf("(%d conflicts, %d corrupt lines)", rep.Conflicts, rep.CorruptLines)))
		}
		fmt.Fprintf(&b, "\ngraph    %d nodes · %d edges\n", rep.Graph.Nodes, rep.Graph.Edges)
		fmt.Fprintf(&b, "symbols  %d files · %d symbols\n", rep.SymbolFiles, rep.SymbolCount)

		llm := rep.Provider
		if llm == "" {
			llm = "none (heuristic extraction)"
		}
		fmt.Fprintf(&b, "llm      %s", llm)
		if rep.ExtractQueue > 0 {
			fmt.Fprintf(&b, "  %s", ui.RenderWarn(fmt.Sprintf("(%d queued for extraction)", rep.ExtractQueue)))
		}
		fmt.Fprintln(&b)
		if rep.Parallel {
			fmt.Fprintf(&b, "tasks    %d done · %d failed · %d active\n",
				rep.Tasks.Completed, rep.Tasks.Failed, rep.Tasks.ActiveIO+rep.Tasks.ActiveCPU)
		} else {
			fmt.Fprintln(&b, "tasks    sequential (orchestrator off)")
		}

		writeNodeSection(&b, "Open questions", rep.OpenQuestions, since)
		writeNodeSection(&b, "Tensions", rep.ActiveTensions, since)
		writeNodeSection(&b, "Pending proposals", rep.Pending, since)

		if len(rep.Pending) > 0 {
			fmt.Fprintf(&b, "\n%s\n", ui.RenderMuted("Confirm with: babel confirm <code>"))
		}
		fmt.Print(b.String())
	},
}

func writeNodeSection(b *strings.Builder, title string, nodes []*types.Node, since time.Time) {
	var kept []*types.Node
	for _, n := range nodes {
		if !since.IsZero() && n.UpdatedAt.Before(since) {
			continue
		}
		kept = append(kept, n)
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d)\n", ui.RenderCategory(title), len(kept))
	for _, n := range kept {
		fmt.Fprintf(b, "  %s\n", nodeLine(n))
	}
}

func init() {
	statusCmd.Flags().String("since", "", "Only list items touched since (e.g. '7d', 'last tuesday')")
	rootCmd.AddCommand(statusCmd)
}
