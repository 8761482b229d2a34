package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/symbols"
	"github.com/babelhq/babel/internal/types"
	"github.com/babelhq/babel/internal/ui"
)

var indexCmd = &cobra.Command{
	Use:   "index [path...]",
	Short: "Build or query the symbol index",
	Long: `Scan the project for code symbols (functions, classes, markdown headers)
and cache them for gather and search. Unchanged files are skipped by
content hash.

With paths, only those files are re-extracted. With --query, search the
existing index instead of scanning:

  babel index
  babel index internal/auth/token.go
  babel index --query "rotate token" --kind function`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		query, _ := cmd.Flags().GetString("query")
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		ws := mustWorkspace(ctx)
		defer func() { _ = ws.Close() }()

		if query != "" {
			matches := ws.Symbols.Query(query, types.SymbolType(kind), limit)
			if jsonOutput {
				outputJSON(matches)
				return
			}
			if len(matches) == 0 {
				fmt.Println(ui.RenderMuted("no symbols match"))
				return
			}
			for _, m := range matches {
				sym := m.Symbol
				fmt.Printf("%5.2f  %s:%d  %s %s\n",
					m.Score,
					sym.FilePath, sym.LineStart,
					ui.RenderAccent(sym.QualifiedName),
					ui.RenderMuted(string(sym.Type)))
			}
			return
		}

		var st symbols.Stats
		var err error
		if len(args) > 0 {
			st, err = ws.Symbols.Update(ctx, args)
		} else {
			st, err = ws.Symbols.IndexAll(ctx)
		}
		if err != nil {
			fatal(err)
		}
		if jsonOutput {
			outputJSON(map[string]int{
				"scanned":   st.Scanned,
				"extracted": st.Extracted,
				"unchanged": st.Unchanged,
				"removed":   st.Removed,
				"failed":    st.Failed,
			})
			return
		}
		line := fmt.Sprintf("%s indexed %d files: %d extracted · %d unchanged · %d removed",
			ui.RenderPass("✓"), st.Scanned, st.Extracted, st.Unchanged, st.Removed)
		if st.Failed > 0 {
			line += "  " + ui.RenderWarn(fmt.Sprintf("(%d failed)", st.Failed))
		}
		fmt.Println(line)
	},
}

func init() {
	indexCmd.Flags().String("query", "", "Search the index instead of scanning")
	indexCmd.Flags().String("kind", "", "Narrow --query to one symbol type (function|class|method|...)")
	indexCmd.Flags().Int("limit", 10, "Maximum --query results")
	rootCmd.AddCommand(indexCmd)
}
