package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/caffeineduck/playpen/examples"
	"github.com/caffeineduck/playpen/workspace"
	"github.com/spf13/cobra"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Browse example programs",
}

var examplesListCmd = &cobra.Command{
	Use:   "list [library]",
	Short: "List examples, optionally for one library",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		library := "all"
		if len(args) > 0 {
			library = args[0]
		}
		list := examples.ForLibrary(library)
		if len(list) == 0 {
			return fmt.Errorf("no examples for %q", library)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tLIBRARY\tDESCRIPTION")
		for _, ex := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", ex.Name, ex.Library, ex.Description)
		}
		return tw.Flush()
	},
}

var examplesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print an example's code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ex, ok := examples.Find(args[0])
		if !ok {
			return fmt.Errorf("no example named %q", args[0])
		}
		fmt.Fprint(cmd.OutOrStdout(), ex.Code)
		return nil
	},
}

func init() {
	examplesCmd.AddCommand(examplesListCmd, examplesShowCmd)
	rootCmd.AddCommand(examplesCmd)
}

// openExample adds the named example to ws as a new Python document.
func openExample(ws *workspace.Workspace, name string) error {
	ex, ok := examples.Find(name)
	if !ok {
		return fmt.Errorf("no example named %q", name)
	}
	doc, err := ws.Create("python")
	if err != nil {
		return err
	}
	return ws.Edit(doc.ID, ex.Code)
}

// openFile adds the file at path to ws, picking the language from its
// extension.
func openFile(ws *workspace.Workspace, path string) error {
	lang, ok := ws.Languages().ForFile(path)
	if !ok {
		return fmt.Errorf("%s: unknown file type", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := ws.Create(lang.ID)
	if err != nil {
		return err
	}
	if err := ws.Rename(doc.ID, filepath.Base(path)); err != nil {
		return err
	}
	return ws.Edit(doc.ID, string(data))
}
