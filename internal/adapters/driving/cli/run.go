package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/definitions/fs"
	nostrpub "github.com/custodia-labs/tagwatch/internal/adapters/driven/publish/nostr"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/publish/outbox"
	xpub "github.com/custodia-labs/tagwatch/internal/adapters/driven/publish/x"
	"github.com/custodia-labs/tagwatch/internal/adapters/driven/state/sqlite"
	"github.com/custodia-labs/tagwatch/internal/config"
	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/core/services"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

const defaultOutboxPath = "./outbox.jsonl"

var (
	runDryRun          bool
	runOnce            bool
	runRequireApproval bool
	runOutboxPath      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch accounts, classify posts, and publish results",
	Long: `Polls the configured X accounts, classifies new posts against the
tag definitions, and publishes the results. Runs continuously unless
--once is given.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "classify and render without publishing")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "process one poll cycle and exit")
	runCmd.Flags().BoolVar(&runRequireApproval, "require-approval", false, "write rendered posts to the outbox for review instead of publishing")
	runCmd.Flags().StringVar(&runOutboxPath, "outbox", "", "outbox file path (used with --require-approval)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runOutboxPath != "" && !runRequireApproval {
		logger.Warn("--outbox is ignored without --require-approval")
	}

	dryRun := runDryRun || cfg.General.DryRun
	if runRequireApproval && dryRun {
		logger.Info("--require-approval overrides dry-run")
		dryRun = false
	}

	definitionsRepo, err := fs.New(cfg.General.DefinitionsDir)
	if err != nil {
		return err
	}

	stateStore, err := sqlite.NewStore(cfg.General.StateDBPath)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	postSource, err := buildPostSource(cfg)
	if err != nil {
		return err
	}

	classifier, err := buildClassifier(cfg)
	if err != nil {
		return err
	}

	xPublisher, nostrPublisher, cleanup, err := buildPublishers(cfg, dryRun)
	if err != nil {
		return err
	}
	defer cleanup()

	loopCfg, err := runLoopConfigFrom(cfg, dryRun)
	if err != nil {
		return err
	}

	runLoop := services.NewRunLoop(
		postSource,
		definitionsRepo,
		classifier,
		xPublisher,
		nostrPublisher,
		stateStore,
		driven.SystemClock{},
		loopCfg,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runOnce {
		return pollOnce(ctx, cmd, runLoop)
	}

	interval := time.Duration(cfg.Watch.PollIntervalSecs) * time.Second
	watcher, err := services.NewWatcher(runLoop, interval)
	if err != nil {
		return err
	}

	cmd.Printf("Watching %d accounts every %s (dry_run=%v). Press Ctrl+C to stop.\n",
		len(cfg.Watch.Accounts), interval, dryRun)

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	cmd.Println("Shut down cleanly.")
	return nil
}

// buildPublishers wires the platform publishers, swapping both for outbox
// writers when approval is required. The returned cleanup closes the
// outbox file, if any.
func buildPublishers(cfg *config.AppConfig, dryRun bool) (driven.Publisher, driven.Publisher, func(), error) {
	noop := func() {}

	if !runRequireApproval {
		xPublisher, err := buildXPublisher(cfg, dryRun)
		if err != nil {
			return nil, nil, noop, err
		}
		nostrPublisher, err := buildNostrPublisher(cfg, dryRun)
		if err != nil {
			return nil, nil, noop, err
		}
		return xPublisher, nostrPublisher, noop, nil
	}

	path := runOutboxPath
	if path == "" {
		path = defaultOutboxPath
	}
	writer, err := outbox.NewWriter(path)
	if err != nil {
		return nil, nil, noop, err
	}
	logger.Info("writing approvals to outbox %s", path)

	if !cfg.X.Write.Enabled && !cfg.Nostr.Enabled {
		logger.Warn("require-approval enabled but no publishers are configured")
	}

	var xPublisher driven.Publisher = xpub.Disabled()
	if cfg.X.Write.Enabled {
		xPublisher = outbox.NewPublisher(writer, "x")
	}

	var nostrPublisher driven.Publisher = nostrpub.Disabled()
	if cfg.Nostr.Enabled {
		nostrPublisher = outbox.NewPublisher(writer, "nostr")
	}

	return xPublisher, nostrPublisher, func() { writer.Close() }, nil
}

// pollOnce runs a single cycle and prints each outcome.
func pollOnce(ctx context.Context, cmd *cobra.Command, runLoop *services.RunLoop) error {
	results, err := runLoop.PollOnce(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle failed: %w", err)
	}

	cmd.Printf("Poll cycle complete: %d posts processed\n", len(results))
	for _, res := range results {
		switch res.Result.Status {
		case domain.StatusPublished:
			ids := make([]string, len(res.Result.Classification.Tags))
			for i, tag := range res.Result.Classification.Tags {
				ids[i] = tag.ID
			}
			cmd.Printf("  published %s/%s tags=%v\n", res.Account, res.Result.PostID, ids)
		case domain.StatusSkipped:
			logger.Debug("skipped %s/%s: %s", res.Account, res.Result.PostID, res.Result.Reason)
		case domain.StatusFailed:
			cmd.PrintErrf("  failed %s/%s: %v\n", res.Account, res.Result.PostID, res.Result.Err)
		}
	}
	return nil
}
