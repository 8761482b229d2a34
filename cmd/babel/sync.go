package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/ui"
	"github.com/babelhq/babel/internal/workspace"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Re-read the journals and rebuild the graph",
	Long: `Pick up journal changes that happened outside this process - a git pull,
a merge, a teammate's events - and rebuild the projection. Conflicting
duplicate ids and corrupt lines become tension nodes, never errors.

When an LLM is reachable, queued extraction work drains here.

With --watch, babel stays running and re-syncs whenever the shared journal
changes on disk.`,
	Run: func(cmd *cobra.Command, args []string) {
		watch, _ := cmd.Flags().GetBool("watch")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		out, err := ws.Sync(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOutput && !watch {
			outputJSON(out)
			return
		}
		renderSync(out)

		if !watch {
			return
		}
		err = ws.WatchJournal(ctx, func(out *workspace.SyncOutcome, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "sync: %v\n", err)
				return
			}
			if len(out.Report.NewEvents) == 0 && len(out.TensionNodes) == 0 && out.DrainedQueue == 0 {
				return
			}
			renderSync(out)
		})
		if err != nil {
			fatal(err)
		}
		if !quietFlag {
			fmt.Println(ui.RenderMuted("Watching journals; ctrl-c to stop."))
		}
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
	},
}

func renderSync(out *workspace.SyncOutcome) {
	fmt.Printf("%s %d new events · %d shared · %d local\n",
		ui.RenderPass("✓"),
		len(out.Report.NewEvents),
		out.Report.SharedEvents,
		out.Report.LocalEvents)
	if len(out.TensionNodes) > 0 {
		fmt.Println(ui.RenderWarn(fmt.Sprintf("%d tensions recorded:", len(out.TensionNodes))))
		for _, id := range out.TensionNodes {
			fmt.Printf("  %s %s\n", ui.RenderShortCode(idgen.Encode(id)), ui.RenderMuted(id))
		}
	}
	if out.DrainedQueue > 0 {
		fmt.Printf("drained %d queued extractions:\n", out.DrainedQueue)
		for _, p := range out.NewProposals {
			fmt.Printf("  %s %s %s  %s\n",
				ui.RenderStatusIcon("proposed"),
				ui.RenderArtifactType(p.Proposal.ArtifactType),
				ui.RenderShortCode(p.Code),
				ui.TruncateSimple(p.Proposal.Content, 64))
		}
	}
}

func init() {
	syncCmd.Flags().Bool("watch", false, "Keep running and re-sync on journal changes")
	rootCmd.AddCommand(syncCmd)
}
