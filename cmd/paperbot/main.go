package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wg21tools/paperbot/internal/bot"
	"github.com/wg21tools/paperbot/internal/config"
	"github.com/wg21tools/paperbot/internal/cursorstore"
	"github.com/wg21tools/paperbot/internal/feed"
	"github.com/wg21tools/paperbot/internal/mattermost"
	"github.com/wg21tools/paperbot/internal/refindex"
)

// idleDelay separates poll cycles. One cycle runs to completion before
// the next begins; there is no concurrency in the loop.
const idleDelay = time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.CursorDBPath), 0755); err != nil {
		logger.Fatal("create cursor directory", zap.Error(err))
	}
	cursors, err := cursorstore.Open(cfg.CursorDBPath)
	if err != nil {
		logger.Fatal("open cursor store", zap.Error(err))
	}
	defer cursors.Close()

	stored, err := cursors.All()
	if err != nil {
		logger.Fatal("read stored cursors", zap.Error(err))
	}
	logger.Info("cursor store ready", zap.Int("channels", len(stored)))

	ctx := context.Background()

	index := refindex.NewIndex(feed.NewClient(cfg.FeedURL, cfg.FeedCacheDir))
	if err := index.Refresh(ctx); err != nil {
		logger.Fatal("initial feed refresh", zap.Error(err))
	}

	client := mattermost.NewClient(cfg.MattermostScheme, cfg.MattermostURL, cfg.MattermostPort, cfg.MattermostToken)
	self, err := client.Me(ctx)
	if err != nil {
		logger.Fatal("identify bot account", zap.Error(err))
	}
	logger.Info("logged in", zap.String("username", self.Username))

	poller := bot.NewPoller(client, cursors, self, logger)
	dispatcher := bot.NewDispatcher(client, index, poller, self, cfg.Operators, logger)

	for {
		if err := dispatcher.RunOnce(ctx); err != nil {
			// Feed or transport outage kills the cycle, not the bot.
			logger.Error("poll cycle failed", zap.Error(err))
		}
		time.Sleep(idleDelay)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
