package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/git-pkgs/internal/types"
)

var atCmd = &cobra.Command{
	Use:   "at <ref>",
	Short: "Show the dependency state of a branch at a specific commit",
	Long: `Resolves ref to a commit and reports every dependency the
branch held immediately after that commit, derived via the Reconstructor's
nearest-snapshot-plus-forward-replay algorithm.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := rootCtx
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		branch, _ := cmd.Flags().GetString("branch")
		if branch == "" {
			branch, err = a.git.DefaultBranch()
			if err != nil {
				return fmt.Errorf("resolving default branch: %w", err)
			}
		}

		hash, ok, err := a.git.ResolveRef(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", types.ErrRefUnresolvable, args[0])
		}

		state, err := a.recon.StateAtCommit(ctx, branch, hash)
		if err != nil {
			return fmt.Errorf("reconstructing state at %s: %w", hash, err)
		}

		deps := make([]types.Dependency, 0, len(state))
		for _, d := range state {
			deps = append(deps, d)
		}
		sort.Slice(deps, func(i, j int) bool {
			if deps[i].ManifestPath != deps[j].ManifestPath {
				return deps[i].ManifestPath < deps[j].ManifestPath
			}
			return deps[i].Name < deps[j].Name
		})

		for _, d := range deps {
			fmt.Printf("%s\t%s\t%s\t%s\n", d.ManifestPath, d.Name, d.Requirement, d.Purl)
		}
		return nil
	},
}

func init() {
	atCmd.Flags().String("branch", "", "Branch to query (default: the repository's default branch)")
	rootCmd.AddCommand(atCmd)
}
