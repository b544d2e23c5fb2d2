package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [branch]",
	Short: "Incrementally index new commits on a branch since its last run",
	Long: `Resumes from branch.last_indexed_commit, rebuilding the
in-progress DependencyState via the Reconstructor and walking forward. A
no-op if the branch is already up to date with its tip.`,
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

		force, _ := cmd.Flags().GetBool("force-rebuild")
		if force {
			if err := a.indexer.ForceRebuild(ctx, branch); err != nil {
				return fmt.Errorf("rebuilding %s: %w", branch, err)
			}
			fmt.Printf("Rebuilt %s\n", branch)
			return nil
		}

		if err := a.indexer.Update(ctx, branch); err != nil {
			return fmt.Errorf("updating %s: %w", branch, err)
		}
		fmt.Printf("Updated %s\n", branch)
		return nil
	},
}

func init() {
	updateCmd.Flags().Bool("force-rebuild", false, "Drop the branch's indexed history and re-run init from scratch")
	rootCmd.AddCommand(updateCmd)
}
