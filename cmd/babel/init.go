package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/babelhq/babel/internal/idgen"
	"github.com/babelhq/babel/internal/ui"
	"github.com/babelhq/babel/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [purpose]",
	Short: "Initialize babel in the current directory",
	Long: `Initialize babel by creating a .babel/ directory with shared and local
journals, then record what this project is for.

The purpose is the root of the reasoning graph: every later decision hangs
off it. Run interactively and babel asks; or pass it directly:

  babel init "Ship usage-based billing without breaking invoicing"
  babel init --name billing "Replace the legacy invoice pipeline"`,
	Args: cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		need, _ := cmd.Flags().GetString("need")
		purpose := strings.TrimSpace(strings.Join(args, " "))

		if purpose == "" && ui.IsTerminal() && !jsonOutput && !quietFlag {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Project name").
						Description("Blank uses the directory name").
						Value(&name),
					huh.NewText().
						Title("What are you building, and why?").
						Description("One or two sentences; this becomes the declared purpose").
						CharLimit(2000).
						Value(&purpose),
				),
			)
			if err := form.Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Fprintln(os.Stderr, "Initialization cancelled.")
					os.Exit(0)
				}
				fatal(err)
			}
			purpose = strings.TrimSpace(purpose)
		}

		ctx := cmd.Context()
		ws, err := openWorkspace(ctx, true)
		if err != nil {
			fatal(err)
		}
		defer func() { _ = ws.Close() }()

		rep, err := ws.Init(ctx, name, need, purpose)
		if err != nil {
			if errors.Is(err, workspace.ErrAlreadyInitialized) {
				fatal(fmt.Errorf("%s already has a project; use 'babel capture' to add to it", ws.Root))
			}
			fatal(err)
		}

		if jsonOutput {
			outputJSON(rep)
			return
		}
		fmt.Printf("Initialized babel in %s\n", ws.Root)
		fmt.Printf("  %s project %s\n", ui.RenderStatusIcon("active"), ui.RenderShortCode(idgen.Encode(rep.ProjectNodeID)))
		if rep.PurposeNodeID != "" {
			fmt.Printf("  %s purpose %s  %s\n", ui.RenderStatusIcon("active"), ui.RenderShortCode(idgen.Encode(rep.PurposeNodeID)), purpose)
		} else {
			fmt.Println("No purpose declared yet; add one with: babel capture --type purpose \"...\"")
		}
		if !quietFlag {
			fmt.Println()
			fmt.Println(ui.RenderMuted("Next: babel capture \"we decided to ...\""))
		}
	},
}

func init() {
	initCmd.Flags().String("name", "", "Project name (default: directory name)")
	initCmd.Flags().String("need", "", "The need behind the project (why it matters)")
	rootCmd.AddCommand(initCmd)
}
