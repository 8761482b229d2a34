package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/ui"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <ref> [resolution]",
	Short: "Close an open question",
	Long: `Mark a question resolved, recording what settled it. The question stays
in the graph; its status flips and the resolution text lands on it.

  babel resolve EF-56 "yes; sharding by region ships in Q4"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		resolution := strings.TrimSpace(strings.Join(args[1:], " "))
		if err := ws.ResolveQuestion(ctx, args[0], resolution); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"resolved": args[0]})
			return
		}
		fmt.Printf("%s resolved %s\n", ui.RenderPass("✓"), args[0])
	},
}

var challengeCmd = &cobra.Command{
	Use:   "challenge <ref> <why>",
	Short: "Record a disagreement with an existing node",
	Long: `Raise a tension against a decision, constraint or any other node. The
challenge becomes part of the graph; nothing is edited or removed.

  babel challenge CD-34 "postgres adds an ops burden we can't staff"`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		severity, _ := cmd.Flags().GetString("severity")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		tensionID, err := ws.Challenge(ctx, args[0], strings.Join(args[1:], " "), severity)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"tension_id": tensionID, "code": idgen.Encode(tensionID)})
			return
		}
		fmt.Printf("%s tension %s challenges %s\n",
			ui.RenderWarn("!"), ui.RenderShortCode(idgen.Encode(tensionID)), args[0])
	},
}

func init() {
	challengeCmd.Flags().String("severity", "", "How serious the tension is (free text)")
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(challengeCmd)
}
