package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
	"github.com/babelhq/babel/internal/workspace"
)

var captureCmd = &cobra.Command{
	Use:   "capture [text]",
	Short: "Capture a thought, decision, constraint or note",
	Long: `Capture free text into the journal. The raw words are always kept; the
extractor then proposes structure (decisions, constraints, questions) for
you to confirm.

With --type the text skips extraction and lands directly as a confirmed
artifact. With --memo it stays a personal note in the local journal.

Examples:
  babel capture "we decided to keep auth logic in the gateway"
  babel capture --type constraint "payment processing must be idempotent"
  babel capture --memo --topic infra "check the staging TLS cert next week"
  git log -1 --format=%B | babel capture`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		typeFlag, _ := cmd.Flags().GetString("type")
		why, _ := cmd.Flags().GetString("why")
		domain, _ := cmd.Flags().GetString("domain")
		scopeFlag, _ := cmd.Flags().GetString("scope")
		memoFlag, _ := cmd.Flags().GetBool("memo")
		topics, _ := cmd.Flags().GetStringSlice("topic")
		yes, _ := cmd.Flags().GetBool("yes")

		if memoFlag && typeFlag != "" {
			fatal(fmt.Errorf("--memo and --type are mutually exclusive"))
		}

		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					fatal(fmt.Errorf("read stdin: %w", err))
				}
				text = strings.TrimSpace(string(data))
			}
		}
		if text == "" {
			fatal(fmt.Errorf("nothing to capture; pass text or pipe it in"))
		}

		var scope types.Scope
		switch scopeFlag {
		case "":
		case string(types.ScopeShared), string(types.ScopeLocal):
			scope = types.Scope(scopeFlag)
		default:
			fatal(fmt.Errorf("unknown scope %q (shared|local)", scopeFlag))
		}

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		out, err := ws.Capture(ctx, workspace.CaptureOptions{
			Text:   text,
			Scope:  scope,
			Type:   typeFlag,
			Why:    why,
			Domain: domain,
			Memo:   memoFlag,
			Topics: topics,
		})
		if err != nil {
			fatal(err)
		}

		if jsonOutput {
			outputJSON(out)
			return
		}

		switch {
		case memoFlag:
			fmt.Printf("%s memo captured (%s)\n", ui.RenderPass("✓"), out.SourceEventID)
			return
		case out.ArtifactNodeID != "":
			code := idgen.Encode(out.ArtifactNodeID)
			fmt.Printf("%s %s %s  %s\n",
				ui.RenderStatusIcon("active"),
				ui.RenderArtifactType(typeFlag),
				ui.RenderShortCode(code),
				ui.TruncateSimple(text, 72))
			return
		}

		if out.Queued {
			fmt.Println(ui.RenderWarn("LLM unreachable; queued for the next sync. Heuristic proposals below."))
		}
		if len(out.Proposals) == 0 {
			fmt.Printf("%s captured (%s); no structure proposed\n", ui.RenderPass("✓"), out.SourceEventID)
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

// confirmProposals promotes extractor output. --yes confirms everything;
// otherwise a terminal gets a picker and anything else leaves proposals
// pending with a hint.
func confirmProposals(cmd *cobra.Command, ws *workspace.Workspace, proposals []workspace.ProposalRef, yes bool) {
	ctx := cmd.Context()

	picked := make([]int, 0, len(proposals))
	switch {
	case yes:
		for i := range proposals {
			picked = append(picked, i)
		}
	case ui.IsTerminal() && !ui.IsAgentMode() && !quietFlag:
		opts := make([]huh.Option[int], len(proposals))
		for i, p := range proposals {
			opts[i] = huh.NewOption(fmt.Sprintf("[%s] %s", p.Proposal.ArtifactType, ui.TruncateSimple(p.Proposal.Content, 56)), i)
		}
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[int]().
					Title("Confirm into the graph?").
					Description("Space toggles, enter accepts; unconfirmed proposals stay pending").
					Options(opts...).
					Value(&picked),
			),
		)
		if err := form.Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println(ui.RenderMuted("Left pending. Confirm later with: babel confirm <code>"))
				return
			}
			fatal(err)
		}
	default:
		fmt.Println(ui.RenderMuted("Confirm with: babel confirm <code>"))
		return
	}

	for _, i := range picked {
		nodeID, err := ws.Confirm(ctx, proposals[i].NodeID, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error confirming %s: %v\n", proposals[i].Code, err)
			continue
		}
		fmt.Printf("  %s confirmed %s\n", ui.RenderPass("✓"), ui.RenderShortCode(idgen.Encode(nodeID)))
	}
	if len(picked) < len(proposals) {
		fmt.Println(ui.RenderMuted("Confirm the rest with: babel confirm <code>"))
	}
}

func init() {
	captureCmd.Flags().String("type", "", "Capture directly as this artifact type (decision|constraint|principle|requirement|purpose)")
	captureCmd.Flags().String("why", "", "Why this holds (stored on the artifact)")
	captureCmd.Flags().String("domain", "", "Domain tag, e.g. auth, billing")
	captureCmd.Flags().String("scope", "", "Journal scope: shared|local (default: shared; memos default local)")
	captureCmd.Flags().Bool("memo", false, "Keep as a personal note instead of extracting structure")
	captureCmd.Flags().StringSlice("topic", nil, "Topic(s) a memo applies to (repeatable)")
	captureCmd.Flags().BoolP("yes", "y", false, "Confirm all proposals without prompting")
	rootCmd.AddCommand(captureCmd)
}
