package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipbot/internal/registry"
)

var editorsCmd = &cobra.Command{
	Use:   "editors",
	Short: "Manage the editor pool",
}

var editorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered editors and their lease state",
	RunE:  runEditorsList,
}

var editorsAddCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Register an editor workspace URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runEditorsAdd,
}

var editorsReleaseCmd = &cobra.Command{
	Use:   "release [url]",
	Short: "Force-release a leased editor",
	Long: `Marks a leased editor available again. Use this after a crash left the
pool exhausted; releasing an already-available editor is a no-op.`,
	Args: cobra.ExactArgs(1),
	RunE: runEditorsRelease,
}

func init() {
	editorsCmd.AddCommand(editorsListCmd)
	editorsCmd.AddCommand(editorsAddCmd)
	editorsCmd.AddCommand(editorsReleaseCmd)
}

func runEditorsList(cmd *cobra.Command, args []string) error {
	reg, err := registry.Open(cfg.EditorsPath())
	if err != nil {
		return err
	}

	editors := reg.List()
	if len(editors) == 0 {
		fmt.Println("No editors registered. Add one with 'clipbot editors add <url>'.")
		return nil
	}
	for _, e := range editors {
		fmt.Printf("%-10s %s\n", e.Status, e.URL)
	}
	return nil
}

func runEditorsAdd(cmd *cobra.Command, args []string) error {
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	reg, err := registry.Open(cfg.EditorsPath())
	if err != nil {
		return err
	}
	if err := reg.Add(args[0]); err != nil {
		return err
	}
	fmt.Printf("Registered %s\n", args[0])
	return nil
}

func runEditorsRelease(cmd *cobra.Command, args []string) error {
	reg, err := registry.Open(cfg.EditorsPath())
	if err != nil {
		return err
	}
	if err := reg.Release(args[0]); err != nil {
		return err
	}
	fmt.Printf("Released %s\n", args[0])
	return nil
}
