package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/eventlog"
	"github.com/babelhq/babel/internal/refs"
	"github.com/babelhq/babel/internal/timeparsing"
	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
	"github.com/babelhq/babel/internal/workspace"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show journaled events",
	Long: `List events in replay order, filtered. With --search, run a token query
over the ref index instead and show the matching events ranked.

Examples:
  babel log --limit 20
  babel log --scope local --since 7d
  babel log --type ARTIFACT_CONFIRMED --type DEPRECATED
  babel log --search "jwt rotation"`,
	Run: func(cmd *cobra.Command, args []string) {
		scopeFlag, _ := cmd.Flags().GetString("scope")
		sinceStr, _ := cmd.Flags().GetString("since")
		typeNames, _ := cmd.Flags().GetStringSlice("type")
		limit, _ := cmd.Flags().GetInt("limit")
		query, _ := cmd.Flags().GetString("search")
		budget, _ := cmd.Flags().GetInt("budget")
		noPager, _ := cmd.Flags().GetBool("no-pager")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		if query != "" {
			results, complete, err := ws.Search(ctx, query, refs.TokenBudget(budget))
			if err != nil {
				fatal(err)
			}
			if jsonOutput {
				outputJSON(map[string]any{"results": results, "complete": complete})
				return
			}
			if len(results) == 0 {
				fmt.Println(ui.RenderMuted("no matches"))
				return
			}
			var b strings.Builder
			for _, r := range results {
				fmt.Fprintf(&b, "%5.2f  %s\n", r.Score, eventLine(r.Event))
			}
			if !complete {
				fmt.Fprintln(&b, ui.RenderWarn("budget exhausted; more matches not shown"))
			}
			if err := ui.ToPager(b.String(), ui.PagerOptions{NoPager: noPager}); err != nil {
				fatal(err)
			}
			return
		}

		filter := workspace.EventFilter{Limit: limit}
		switch scopeFlag {
		case "":
		case string(types.ScopeShared), string(types.ScopeLocal):
			filter.Scope = types.Scope(scopeFlag)
		default:
			fatal(fmt.Errorf("unknown scope %q (shared|local)", scopeFlag))
		}
		if sinceStr != "" {
			since, err := timeparsing.Parse(sinceStr, time.Now())
			if err != nil {
				fatal(fmt.Errorf("parse --since: %w", err))
			}
			filter.Since = since
		}
		for _, t := range typeNames {
			filter.Types = append(filter.Types, types.EventType(strings.ToUpper(t)))
		}

		events, err := ws.History(filter)
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(events)
			return
		}
		if len(events) == 0 {
			fmt.Println(ui.RenderMuted("no events"))
			return
		}
		var b strings.Builder
		for _, ev := range events {
			fmt.Fprintln(&b, eventLine(ev))
		}
		if err := ui.ToPager(b.String(), ui.PagerOptions{NoPager: noPager}); err != nil {
			fatal(err)
		}
	},
}

var logVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check journal integrity",
	Long: `Stream both journals and validate them: ids match their content hashes,
no conflicting duplicates, no corrupt lines, no torn tail. Exit non-zero
when anything is wrong.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		healthy := true
		var reports []*eventlog.VerifyResult
		for _, scope := range []types.Scope{types.ScopeShared, types.ScopeLocal} {
			res, err := ws.Log.Verify(scope)
			if err != nil {
				fatal(err)
			}
			reports = append(reports, res)
			if !res.OK() {
				healthy = false
			}
		}
		if jsonOutput {
			outputJSON(reports)
		} else {
			for _, res := range reports {
				state := ui.RenderPass("ok")
				if !res.OK() {
					state = ui.RenderFail("damaged")
				}
				fmt.Printf("%-6s %s  %d events, %d duplicates\n", res.Scope, state, res.Events, res.Duplicates)
				for _, c := range res.Conflicts {
					fmt.Printf("  %s\n", ui.RenderFail(fmt.Sprintf("conflicting duplicate id %s", c.ID)))
				}
				for _, line := range res.CorruptLines {
					fmt.Printf("  %s\n", ui.RenderFail(fmt.Sprintf("corrupt line %d", line)))
				}
				if res.TornTail {
					fmt.Printf("  %s\n", ui.RenderWarn("torn tail (interrupted append; next write recovers)"))
				}
			}
		}
		if !healthy {
			fatal(fmt.Errorf("journal damage found; 'babel sync' records it as tensions"))
		}
	},
}

func init() {
	logCmd.Flags().String("scope", "", "Journal scope: shared|local (default: both)")
	logCmd.Flags().String("since", "", "Only events since (e.g. '7d', '2026-08-01', 'last tuesday')")
	logCmd.Flags().StringSlice("type", nil, "Event type filter (repeatable)")
	logCmd.Flags().Int("limit", 0, "Keep only the most recent N events")
	logCmd.Flags().String("search", "", "Token query over the ref index instead of a listing")
	logCmd.Flags().Int("budget", 0, "Token budget for hydrating search results (0 = unlimited)")
	logCmd.Flags().Bool("no-pager", false, "Never pipe output through a pager")
	logCmd.AddCommand(logVerifyCmd)
	rootCmd.AddCommand(logCmd)
}
