package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/ui"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <ref>",
	Short: "Promote a proposal into a confirmed artifact",
	Long: `Promote a pending proposal into the graph. The reference can be a short
code (AB-12), a node id, or enough words to resolve it unambiguously.

Question proposals become raised questions rather than artifacts.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		overrideType, _ := cmd.Flags().GetString("type")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		nodeID, err := ws.Confirm(ctx, args[0], overrideType)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"node_id": nodeID, "code": idgen.Encode(nodeID)})
			return
		}
		kind := nodeID
		if i := strings.Index(nodeID, "_"); i > 0 {
			kind = nodeID[:i]
		}
		fmt.Printf("%s %s %s\n", ui.RenderPass("✓"), ui.RenderArtifactType(kind), ui.RenderShortCode(idgen.Encode(nodeID)))
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <ref>",
	Short: "Deprecate a proposal without deleting anything",
	Long: `Mark a proposal (or any node) deprecated. The node stops surfacing in
status and search but its history stays in the journal.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		if err := ws.Reject(ctx, args[0], reason); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"rejected": args[0]})
			return
		}
		fmt.Printf("%s rejected %s\n", ui.RenderFail("✗"), args[0])
	},
}

func init() {
	confirmCmd.Flags().String("type", "", "Override the proposed artifact type")
	rejectCmd.Flags().String("reason", "", "Why the proposal is wrong (kept in history)")
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(rejectCmd)
}
