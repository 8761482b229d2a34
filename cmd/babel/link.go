package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
)

var linkCmd = &cobra.Command{
	Use:   "link <from> <relation> <to>",
	Short: "Assert a relation between two nodes",
	Long: `Create a typed edge. Relations: supports, informs, challenges, resolves,
supersedes, applies_to.

  babel link CD-34 supports AB-12
  babel link GH-78 resolves EF-56`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		rel := types.Relation(args[1])
		if err := ws.Link(ctx, args[0], args[2], rel); err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"from": args[0], "relation": args[1], "to": args[2]})
			return
		}
		fmt.Printf("%s %s %s %s\n", ui.RenderPass("✓"), args[0], ui.RenderAccent("-["+args[1]+"]->"), args[2])
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}
