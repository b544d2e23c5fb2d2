package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [branch]",
	Short: "Build the dependency-history store from scratch for a branch",
	Long: `Walks every commit on a branch (default branch if none is given),
records dependency manifest changes at each commit, and writes periodic
full-state snapshots. Safe to re-run: an existing branch is re-indexed from
the beginning.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		branch := ""
		if len(args) == 1 {
			branch = args[0]
		} else {
			branch, err = a.git.DefaultBranch()
			if err != nil {
				return fmt.Errorf("resolving default branch: %w", err)
			}
		}

		from, _ := cmd.Flags().GetString("from")

		if err := a.indexer.Init(ctx, branch, from); err != nil {
			return fmt.Errorf("indexing %s: %w", branch, err)
		}
		fmt.Printf("Indexed %s\n", branch)
		return nil
	},
}

func init() {
	initCmd.Flags().String("from", "", "Start indexing after this commit rather than from the beginning")
	rootCmd.AddCommand(initCmd)
}
