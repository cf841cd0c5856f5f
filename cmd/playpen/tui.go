package main

import (
	"fmt"

	"github.com/caffeineduck/playpen/internal/config"
	"github.com/caffeineduck/playpen/internal/tui"
	"github.com/caffeineduck/playpen/orchestrator"
	"github.com/caffeineduck/playpen/output"
	"github.com/caffeineduck/playpen/workspace"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [files...]",
	Short: "Interactive terminal playground",
	Long: `Open the terminal playground: a document list, an editor and a console.

Keys:
  ctrl+r              run the active document
  ctrl+n / ctrl+w     new / close document
  ctrl+l              cycle the document's language
  ctrl+pgdown / pgup  next / previous document
  ctrl+up/down        move the editor/console divider (or drag it)
  tab                 indent
  ctrl+c              quit

The divider position is saved to the configuration file on exit.`,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().String("example", "", "Open an example program (see 'playpen examples list')")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ws := workspace.New(nil)
	for _, path := range args {
		if err := openFile(ws, path); err != nil {
			return err
		}
	}
	if name, _ := cmd.Flags().GetString("example"); name != "" {
		if err := openExample(ws, name); err != nil {
			return err
		}
	}

	sink := tui.NewSink()
	orch := a.orchestrator(output.NewConsole(sink), orchestrator.WithClearOnRun())
	m, err := tui.New(cmd.Context(), ws, orch, sink, tui.Options{
		Sizes:    a.cfg.Layout.Sizes,
		MinSizes: a.cfg.Layout.MinSizes,
	})
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return err
	}

	a.cfg.Layout.Sizes = m.Sizes()
	if err := config.SaveLayout(a.cfg); err != nil {
		a.logger.Warn("save layout", zap.Error(err))
	}
	return nil
}
