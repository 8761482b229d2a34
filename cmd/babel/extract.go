package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/ui"
)

var extractCmd = &cobra.Command{
	Use:   "extract <ref>",
	Short: "Re-run structure extraction on captured text",
	Long: `Run the extractor again over a previously captured memo or raw capture,
for example after switching to a better model. Fresh proposals join the
pending set; nothing already in the graph is touched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		out, err := ws.ReExtract(ctx, args[0])
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(out)
			return
		}
		if out.Queued {
			fmt.Println(ui.RenderWarn("LLM unreachable; queued for the next sync. Heuristic proposals below."))
		}
		if len(out.Proposals) == 0 {
			fmt.Printf("%s no structure proposed for %s\n", ui.RenderMuted("·"), out.SourceEventID)
			return
		}
		fmt.Printf("Proposed by %s:\n", out.Extractor)
		for _, p := range out.Proposals {
			fmt.Printf("  %s %s %s  %s (%.0f%%)\n",
				ui.RenderStatusIcon("proposed"),
				ui.RenderArtifactType(p.Proposal.ArtifactType),
				ui.RenderShortCode(p.Code),
				ui.TruncateSimple(p.Proposal.Content, 64),
				p.Proposal.Confidence*100)
		}
		confirmProposals(cmd, ws, out.Proposals, yes)
	},
}

func init() {
	extractCmd.Flags().BoolP("yes", "y", false, "Confirm all proposals without prompting")
	rootCmd.AddCommand(extractCmd)
}
