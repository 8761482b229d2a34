package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/git"
	"github.com/babelhq/babel/internal/ui"
)

var commitCmd = &cobra.Command{
	Use:   "commit <hash>",
	Short: "Capture a VCS commit and link it to artifacts",
	Long: `Journal a commit so the graph can connect code changes to the reasoning
behind them. Message and author are read from git when not given; --link
ties the commit to artifacts it implements.

  babel commit HEAD --link CD-34
  babel commit 3f2a91c --message "rotate signing keys" --link CD-34 --link GH-78`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		message, _ := cmd.Flags().GetString("message")
		author, _ := cmd.Flags().GetString("author")
		links, _ := cmd.Flags().GetStringSlice("link")

		hash := args[0]
		if full, err := git.ResolveHash(projectDir, hash); err == nil {
			hash = full
		}
		if message == "" {
			if m, err := git.CommitMessage(projectDir, hash); err == nil {
				message = m
			}
		}
		if author == "" {
			if a, err := git.CommitAuthor(projectDir, hash); err == nil {
				author = a
			}
		}

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		eventID, err := ws.CaptureCommit(ctx, hash, message, author, links)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"event_id": eventID, "hash": hash})
			return
		}
		fmt.Printf("%s captured %.12s", ui.RenderPass("✓"), hash)
		if len(links) > 0 {
			fmt.Printf(" → %s", strings.Join(links, ", "))
		}
		fmt.Println()
	},
}

func init() {
	commitCmd.Flags().StringP("message", "m", "", "Commit message (default: read from git)")
	commitCmd.Flags().String("author", "", "Commit author (default: read from git, then the actor)")
	commitCmd.Flags().StringSlice("link", nil, "Artifact the commit implements (repeatable)")
	rootCmd.AddCommand(commitCmd)
}
