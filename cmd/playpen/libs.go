package main

import (
	"fmt"

	"github.com/caffeineduck/playpen/internal/config"
	"github.com/caffeineduck/playpen/language/python/pypi"
	"github.com/spf13/cobra"
)

var libsCmd = &cobra.Command{
	Use:   "libs",
	Short: "Manage Python packages available to programs",
	Long: `Install and manage Python packages that programs can import.

Packages are downloaded directly from the package index (no pip required).
Only pure Python wheels are supported; packages with C extensions won't
work in the WebAssembly interpreter.`,
}

var libsInstallCmd = &cobra.Command{
	Use:   "install [packages...]",
	Short: "Install packages from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLibsInstall,
}

var libsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	RunE:  runLibsList,
}

var libsRemoveCmd = &cobra.Command{
	Use:   "remove [packages...]",
	Short: "Remove packages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLibsRemove,
}

func init() {
	libsCmd.AddCommand(libsInstallCmd, libsListCmd, libsRemoveCmd)
	rootCmd.AddCommand(libsCmd)
}

func newInstaller(cmd *cobra.Command) (*pypi.Installer, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}
	return pypi.New(cfg.Python.PackagesDir,
		pypi.WithIndexURL(cfg.Python.IndexURL),
		pypi.WithLogger(logger.Named("pypi"))), nil
}

func runLibsInstall(cmd *cobra.Command, args []string) error {
	inst, err := newInstaller(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, spec := range args {
		name, _ := pypi.ParseSpec(spec)
		fmt.Fprintf(out, "Installing %s...\n", name)
		err := inst.Install(cmd.Context(), spec, func(line string) {
			fmt.Fprintf(out, "  %s\n", line)
		})
		if err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
	}
	fmt.Fprintln(out, "Done.")
	return nil
}

func runLibsList(cmd *cobra.Command, args []string) error {
	inst, err := newInstaller(cmd)
	if err != nil {
		return err
	}

	names, err := inst.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "No packages installed.")
		return nil
	}
	fmt.Fprintf(out, "Packages in %s:\n", inst.Dir())
	for _, n := range names {
		fmt.Fprintf(out, "  %s\n", n)
	}
	return nil
}

func runLibsRemove(cmd *cobra.Command, args []string) error {
	inst, err := newInstaller(cmd)
	if err != nil {
		return err
	}
	for _, pkg := range args {
		if err := inst.Remove(pkg); err != nil {
			return fmt.Errorf("remove %s: %w", pkg, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", pkg)
	}
	return nil
}
