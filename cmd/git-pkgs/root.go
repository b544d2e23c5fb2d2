package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/git-pkgs/internal/analyzer"
	"github.com/git-pkgs/git-pkgs/internal/branchmgr"
	"github.com/git-pkgs/git-pkgs/internal/config"
	"github.com/git-pkgs/git-pkgs/internal/gitreader"
	"github.com/git-pkgs/git-pkgs/internal/indexer"
	"github.com/git-pkgs/git-pkgs/internal/logging"
	"github.com/git-pkgs/git-pkgs/internal/manifest"
	"github.com/git-pkgs/git-pkgs/internal/reconstructor"
	"github.com/git-pkgs/git-pkgs/internal/store/sqlite"
	"github.com/git-pkgs/git-pkgs/internal/types"
)

var log *slog.Logger

// rootCtx is the context every subcommand runs under, mirroring the
// teacher's package-level rootCtx rather than cmd.Context() at each call
// site.
var rootCtx = context.Background()

var rootCmd = &cobra.Command{
	Use:           "git-pkgs",
	Short:         "Index and query a git repository's dependency history",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		log = logging.New()
		return nil
	},
}

// app bundles the collaborators every subcommand needs, wired from the
// current process's config and working directory.
type app struct {
	repoRoot string
	gitDir   string
	git      *gitreader.Reader
	store    *sqlite.SQLiteStorage
	indexer  *indexer.Indexer
	branches *branchmgr.BranchManager
	recon    *reconstructor.Reconstructor
}

func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// openApp discovers the enclosing repository from cwd and wires the full
// pipeline against its store, opening (and migrating, if needed) the
// database as a side effect.
func openApp(ctx context.Context) (*app, error) {
	repoRoot, gitDir, err := findRepo()
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(ctx)
	if err != nil {
		return nil, err
	}

	git := gitreader.New(repoRoot)
	anl := analyzer.New(git, registry)

	st, err := sqlite.New(ctx, config.DBPath(gitDir))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if config.BulkWrite() {
		if err := st.SetBulkWriteMode(ctx, true); err != nil {
			return nil, fmt.Errorf("enabling bulk write mode: %w", err)
		}
	}

	lockPath := filepath.Join(gitDir, "pkgs.lock")
	ix := indexer.New(git, anl, st, lockPath,
		indexer.WithBatchSize(config.BatchSize()),
		indexer.WithSnapshotInterval(config.SnapshotInterval()),
		indexer.WithLogger(log),
	)
	recon := reconstructor.NewFromStore(st)
	bm := branchmgr.New(st, git, ix)

	return &app{
		repoRoot: repoRoot,
		gitDir:   gitDir,
		git:      git,
		store:    st,
		indexer:  ix,
		branches: bm,
		recon:    recon,
	}, nil
}

// buildRegistry loads the built-in ManifestParsers plus any configured WASM
// plugins (pkgs.parserPlugins).
func buildRegistry(ctx context.Context) (*manifest.Registry, error) {
	cfg := manifest.Config{
		IgnoredDirs:  config.IgnoredDirs(),
		IgnoredFiles: config.IgnoredFiles(),
		Ecosystems:   config.Ecosystems(),
	}
	var extra []manifest.ManifestParser
	for _, path := range config.ParserPlugins() {
		p, err := manifest.LoadWasmParser(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("loading parser plugin %s: %w", path, err)
		}
		extra = append(extra, p)
	}
	return manifest.NewRegistry(cfg, extra...), nil
}

// findRepo walks up from cwd looking for a .git entry, mirroring how git
// itself locates the repository root and how config.Initialize locates
// .git-pkgs.yaml.
func findRepo() (repoRoot, gitDir string, err error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("getting working directory: %w", err)
	}
	for dir := cwd; ; {
		candidate := filepath.Join(dir, ".git")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return dir, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", types.ErrNotInRepository
		}
		dir = parent
	}
}
