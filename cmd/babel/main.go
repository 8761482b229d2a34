package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/config"
	"github.com/babelhq/babel/internal/debug"
	"github.com/babelhq/babel/internal/git"
	"github.com/babelhq/babel/internal/ui"
	"github.com/babelhq/babel/internal/workspace"
)

var (
	projectDir  string
	actorFlag   string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "babel",
	Short: "babel - keeps the why of a codebase",
	Long: `Babel captures reasoning alongside code: decisions, constraints, principles,
purposes and open questions, journaled as append-only events and projected
into a graph you can query after the original conversations are gone.

Start with 'babel init', then 'babel capture' whenever something worth
remembering is said. 'babel why <ref>' answers the question the tool exists
for.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("babel version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)

		// Force plain output before anything renders. lipgloss styles
		// degrade to no-ops on the Ascii profile.
		if noColor || !ui.ShouldUseColor() {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		if err := config.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "Project directory (default: walk up from cwd to .babel)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor name for provenance (default: $BABEL_ACTOR, git user.name, $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

// resolveActor returns the provenance name for journaled events.
// Priority: --actor flag > BABEL_ACTOR env > git config user.name > $USER.
func resolveActor() string {
	if actorFlag != "" {
		return actorFlag
	}
	if a := os.Getenv("BABEL_ACTOR"); a != "" {
		return a
	}
	if gitUser := git.UserName(projectDir); gitUser != "" {
		return gitUser
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// openWorkspace opens the workspace every command operates on. The caller
// owns the returned workspace and must Close it.
func openWorkspace(ctx context.Context, create bool) (*workspace.Workspace, error) {
	dir := projectDir
	if dir == "" {
		dir = "."
	}
	return workspace.Open(ctx, dir, workspace.Options{
		Create: create,
		Actor:  resolveActor(),
	})
}

// mustWorkspace is openWorkspace for commands where an open failure is
// always fatal. It prints the error and exits.
func mustWorkspace(ctx context.Context) *workspace.Workspace {
	ws, err := openWorkspace(ctx, false)
	if err != nil {
		if jsonOutput {
			outputJSONError(err, "workspace")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return ws
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
