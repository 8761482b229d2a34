package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/gather"
	"github.com/babelhq/babel/internal/ui"
)

var gatherCmd = &cobra.Command{
	Use:   "gather [file...]",
	Short: "Assemble a bounded context corpus",
	Long: `Pull files, search hits, subprocess output, globs and symbols into one
size-bounded markdown document, gathered in parallel. Failed sources
render inline as errors; the rest of the corpus stays useful.

Bash sources pass a safety gate first: babel invocations must be SAFE
(status, why, log, version); anything else is rejected before running.

Examples:
  babel gather internal/auth/*.go --intent "reviewing token rotation"
  babel gather --grep "refresh_token" --symbol RotateToken
  babel gather --bash "git log --oneline -20" --limit 32768`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		files, _ := cmd.Flags().GetStringSlice("file")
		greps, _ := cmd.Flags().GetStringSlice("grep")
		grepPath, _ := cmd.Flags().GetString("path")
		bashes, _ := cmd.Flags().GetStringSlice("bash")
		globs, _ := cmd.Flags().GetStringSlice("glob")
		symbolNames, _ := cmd.Flags().GetStringSlice("symbol")
		intent, _ := cmd.Flags().GetString("intent")
		op, _ := cmd.Flags().GetString("op")
		limit, _ := cmd.Flags().GetInt64("limit")
		chunked, _ := cmd.Flags().GetBool("chunks")
		strategy, _ := cmd.Flags().GetString("strategy")
		noPager, _ := cmd.Flags().GetBool("no-pager")

		plan := &gather.Plan{Operation: op, Intent: intent, SizeLimit: limit}
		for _, f := range append(files, args...) {
			plan.Sources = append(plan.Sources, gather.FileSource(f))
		}
		for _, pattern := range greps {
			plan.Sources = append(plan.Sources, gather.GrepSource(pattern, grepPath))
		}
		for _, command := range bashes {
			plan.Sources = append(plan.Sources, gather.BashSource(command))
		}
		for _, pattern := range globs {
			plan.Sources = append(plan.Sources, gather.GlobSource(pattern, ""))
		}
		for _, name := range symbolNames {
			plan.Sources = append(plan.Sources, gather.SymbolSource(name))
		}
		if len(plan.Sources) == 0 {
			fatal(fmt.Errorf("nothing to gather; add --file, --grep, --bash, --glob or --symbol sources"))
		}

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		if plan.SizeLimit == 0 {
			plan.SizeLimit = int64(ws.Settings.GatherSizeLimit)
		}
		switch strategy {
		case "":
		case string(gather.StrategySize), string(gather.StrategyCoherence), string(gather.StrategyPriority):
			ws.Gatherer.SetStrategy(gather.Strategy(strategy))
		default:
			fatal(fmt.Errorf("unknown strategy %q (size|coherence|priority)", strategy))
		}

		chunks, err := ws.Gatherer.GatherChunks(ctx, plan)
		if err != nil {
			var violation *gather.SafetyViolation
			if errors.As(err, &violation) {
				fmt.Fprintf(os.Stderr, "%s\n", ui.RenderFail(violation.Error()))
				os.Exit(1)
			}
			fatal(err)
		}

		renderer := &gather.Renderer{}
		if jsonOutput {
			var flat []gather.Result
			for _, cr := range chunks {
				flat = append(flat, cr.Results...)
			}
			data, err := renderer.RenderJSON(flat)
			if err != nil {
				fatal(err)
			}
			fmt.Println(string(data))
			return
		}

		var out string
		if chunked {
			for i, cr := range chunks {
				out += renderer.Render(plan, i+1, len(chunks), cr.Results, nil)
			}
		} else {
			var flat []gather.Result
			for _, cr := range chunks {
				flat = append(flat, cr.Results...)
			}
			out = renderer.Render(plan, 1, 1, flat, nil)
		}

		if ui.IsTerminal() && !ui.IsAgentMode() {
			out = ui.RenderMarkdown(out)
		}
		if err := ui.ToPager(out, ui.PagerOptions{NoPager: noPager}); err != nil {
			fatal(err)
		}
	},
}

func init() {
	gatherCmd.Flags().StringSlice("file", nil, "File to include (repeatable; positional args work too)")
	gatherCmd.Flags().StringSlice("grep", nil, "Search pattern to include matches of (repeatable)")
	gatherCmd.Flags().String("path", "", "Scope for --grep patterns (default: project root)")
	gatherCmd.Flags().StringSlice("bash", nil, "Command whose output to include (repeatable, safety-gated)")
	gatherCmd.Flags().StringSlice("glob", nil, "Glob of files to include, e.g. 'internal/**/*.go' (repeatable)")
	gatherCmd.Flags().StringSlice("symbol", nil, "Indexed symbol to include source for (repeatable)")
	gatherCmd.Flags().String("intent", "", "Why this corpus is being gathered (rendered in the header)")
	gatherCmd.Flags().String("op", "gather", "Operation name for the document banner")
	gatherCmd.Flags().Int64("limit", 0, "Corpus size limit in bytes (default: config gather.size-limit)")
	gatherCmd.Flags().Bool("chunks", false, "Render size-bounded chunks as separate documents")
	gatherCmd.Flags().String("strategy", "", "Chunking strategy: size|coherence|priority")
	gatherCmd.Flags().Bool("no-pager", false, "Never pipe output through a pager")
	rootCmd.AddCommand(gatherCmd)
}
