package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caffeineduck/playpen/workspace"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a program once",
	Long: `Run a program and print its console output.

Code can be provided via:
  - File argument: playpen run script.py
  - Inline flag: playpen run -l python -c 'print(1+1)'
  - Stdin: echo 'print(1+1)' | playpen run -l python

The exit status is 1 when the program fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Duration("timeout", 0, "Execution timeout (default 30s)")
}

func readSource(cmd *cobra.Command, args []string) (source, filename string, err error) {
	code, _ := cmd.Flags().GetString("code")
	switch {
	case code != "":
		return code, "", nil
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
			return "", "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), "", nil
}

func runRun(cmd *cobra.Command, args []string) error {
	source, filename, err := readSource(cmd, args)
	if err != nil {
		return err
	}
	if source == "" {
		return cmd.Help()
	}

	langFlag, _ := cmd.Flags().GetString("lang")
	lang, err := languageFor(langFlag, filename)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ws := workspace.New(nil)
	doc, err := ws.Create(lang)
	if err != nil {
		return err
	}
	if filename != "" {
		_ = ws.Rename(doc.ID, filepath.Base(filename))
	}
	if err := ws.Edit(doc.ID, source); err != nil {
		return err
	}
	doc, _ = ws.Get(doc.ID)

	orch := a.orchestrator(consoleFor(cmd.OutOrStdout()))

	if res := orch.Run(cmd.Context(), doc); !res.Success {
		return errRunFailed
	}
	return nil
}
