package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/ui"
)

var topicCmd = &cobra.Command{
	Use:   "topic <name>",
	Short: "Declare a shared topic",
	Long: `Declare a topic the team files work under. Topics converge by name:
declaring "auth" and capturing memos with --topic auth land on one node.

  babel topic auth --about "authentication and session handling"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		about, _ := cmd.Flags().GetString("about")

		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		id, err := ws.DeclareTopic(ctx, args[0], about)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"topic": args[0], "node_id": id})
			return
		}
		fmt.Printf("%s topic %s (%s)\n", ui.RenderPass("✓"), args[0], id)
	},
}

func init() {
	topicCmd.Flags().String("about", "", "One-line description of the topic")
	rootCmd.AddCommand(topicCmd)
}
