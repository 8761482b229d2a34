package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/ui"
)

var endorseCmd = &cobra.Command{
	Use:   "endorse <ref>",
	Short: "Mark consensus on an artifact",
	Long: `Record that you stand behind a node. Endorsement flips the node's
consensus mark; who endorsed and when stays in the journal.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		comment, _ := cmd.Flags().GetString("comment")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		if err := ws.Endorse(ctx, args[0], comment); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"endorsed": args[0]})
			return
		}
		fmt.Printf("%s endorsed %s\n", ui.RenderPass("✓"), args[0])
	},
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence <ref> <text>",
	Short: "Attach supporting evidence to an artifact",
	Long: `Record material that backs a node up: a benchmark, an incident, a link.
Evidence flips the node's evidence mark.

  babel evidence CD-34 "p99 dropped 40% after the switch" --source grafana`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		source, _ := cmd.Flags().GetString("source")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		if err := ws.AttachEvidence(ctx, args[0], strings.Join(args[1:], " "), source); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"evidence_on": args[0]})
			return
		}
		fmt.Printf("%s evidence attached to %s\n", ui.RenderPass("✓"), args[0])
	},
}

func init() {
	endorseCmd.Flags().String("comment", "", "Optional note on the endorsement")
	evidenceCmd.Flags().String("source", "", "Where the evidence lives (url, dashboard, ticket)")
	rootCmd.AddCommand(endorseCmd)
	rootCmd.AddCommand(evidenceCmd)
}
