package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/playpen/workspace"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive prompt, one run per submission",
	Long: `Start an interactive prompt. Every submission is run as a complete
program; nothing carries over between submissions except loaded libraries
and the initialized language backend.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.playpen_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	langFlag, _ := cmd.Flags().GetString("lang")
	historyFile, _ := cmd.Flags().GetString("history")

	if langFlag == "" {
		langFlag = "python"
	}
	lang, err := languageFor(langFlag, "")
	if err != nil {
		return err
	}
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".playpen_history")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	stdout := cmd.OutOrStdout()
	orch := a.orchestrator(consoleFor(stdout))
	if !orch.Supports(lang) {
		return fmt.Errorf("no backend for language %q", lang)
	}

	ws := workspace.New(nil)
	doc, err := ws.Create(lang)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             io.NopCloser(cmd.InOrStdin()),
		Stdout:            stdout,
		Stderr:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "playpen %s REPL (type 'exit' to quit, Ctrl+D to exit)\n", lang)

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(stdout)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := ws.Edit(doc.ID, line); err != nil {
			return err
		}
		doc, _ = ws.Get(doc.ID)
		orch.Run(cmd.Context(), doc)

		if cmd.Context().Err() != nil {
			return nil
		}
	}
}
