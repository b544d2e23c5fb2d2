package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Manage which branches are tracked",
}

var branchAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Start tracking a branch, indexing it in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.branches.Add(ctx, args[0]); err != nil {
			return fmt.Errorf("adding branch %s: %w", args[0], err)
		}
		fmt.Printf("Tracking %s\n", args[0])
		return nil
	},
}

var branchRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Stop tracking a branch",
	Long: `Drops the branch's position links. Commits, manifests, and
dependency rows shared with other tracked branches are left in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.branches.Remove(ctx, args[0]); err != nil {
			return fmt.Errorf("removing branch %s: %w", args[0], err)
		}
		fmt.Printf("Stopped tracking %s\n", args[0])
		return nil
	},
}

var branchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked branches and their indexing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		summaries, err := a.branches.List(ctx)
		if err != nil {
			return fmt.Errorf("listing branches: %w", err)
		}
		if len(summaries) == 0 {
			fmt.Println("No branches tracked")
			return nil
		}
		for _, s := range summaries {
			status := "not yet indexed"
			if s.Indexed {
				status = "at " + s.LastIndexedCommitHash
			}
			fmt.Printf("%s\t%s\n", s.Name, status)
		}
		return nil
	},
}

func init() {
	branchCmd.AddCommand(branchAddCmd, branchRemoveCmd, branchListCmd)
	rootCmd.AddCommand(branchCmd)
}
