package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/parley/internal/archive"
	"github.com/user/parley/internal/clock"
	"github.com/user/parley/internal/config"
	"github.com/user/parley/internal/dispatch"
	"github.com/user/parley/internal/httpapi"
	"github.com/user/parley/internal/intel"
	"github.com/user/parley/internal/journal"
	"github.com/user/parley/internal/maintenance"
	"github.com/user/parley/internal/notify"
	"github.com/user/parley/internal/recordings"
	"github.com/user/parley/internal/runtime"
	"github.com/user/parley/internal/search"
	"github.com/user/parley/internal/session"
	"github.com/user/parley/internal/telegram"
	"github.com/user/parley/pkg/backend"
	"github.com/user/parley/pkg/backend/rest"
	"github.com/user/parley/pkg/backend/stream"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the parley daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "parley.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

// sessionArchiver persists cleared sessions to the archive store, then
// compresses the session's journal segment. Compression failures are
// logged rather than surfaced so they never block a clear.
type sessionArchiver struct {
	store   *archive.Store
	journal *journal.Journal
}

func (a *sessionArchiver) ArchiveSession(ctx context.Context, snap session.Snapshot) error {
	if err := a.store.ArchiveSession(ctx, snap); err != nil {
		return err
	}
	if _, err := archive.CompressJournal(a.journal.SegmentPath(snap.ID)); err != nil {
		slog.Warn("journal compression failed", "session_id", snap.ID, "error", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Write PID file
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	clk := clock.Real()

	// Stores
	store, err := archive.Open(filepath.Join(cfg.DataDir, "archive.db"))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()
	jrnl := journal.NewJournal(cfg.DataDir, clk)

	// Live session state
	sess := session.New(clk, &sessionArchiver{store: store, journal: jrnl})
	manager := recordings.New(clk, nil)

	// Backend REST client
	client := rest.New(&backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
	})
	remote := recordings.NewRemote(manager, client)

	// Search pipeline
	cache := search.NewCache(clk, time.Duration(cfg.Search.CacheTTLSec)*time.Second, cfg.Search.CacheMaxEntries)
	recent := search.NewRecentStore(filepath.Join(cfg.DataDir, "recent_queries.json"), cfg.Search.RecentLimit)
	searcher := search.NewSearcher(client, cache, recent, clk,
		time.Duration(cfg.Search.DebounceMs)*time.Millisecond, cfg.Search.AutoSearch)

	// Manual analysis
	budget, err := intel.NewBudget(cfg.Analysis.Model, cfg.Analysis.MaxInputTokens)
	if err != nil {
		return fmt.Errorf("create token budget: %w", err)
	}
	analyzer := intel.NewAnalyzer(client, sess.Correlator(), budget)

	// Notification targets
	notifyReg := notify.NewRegistry()
	var targets []string
	if cfg.Telegram.Token != "" {
		notifier, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		notifyReg.Register("telegram:", notifier.Handler())
		targets = append(targets, "telegram:")
		slog.Info("telegram notifier started")
	} else {
		slog.Warn("telegram notifier disabled (no token)")
	}

	// Event runtime
	rt := runtime.New(sess, manager, notifyReg, targets)
	dispatcher := dispatch.New(int64(cfg.MaxConcurrent))
	rt.RegisterHandlers(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	slog.Info("parley started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"backend", cfg.Backend.BaseURL,
		"stream", cfg.Backend.StreamAddr,
		"pid_file", pidPath,
	)

	// Stream consumer. Every event is journaled before dispatch so a
	// crash mid-processing can be replayed from disk.
	streamClient := stream.New(cfg.Backend.StreamAddr, func(ev backend.StreamEvent) {
		if err := jrnl.Append(ctx, sess.ID(), ev); err != nil {
			slog.Warn("journal append failed", "type", ev.Type, "error", err)
		}
		if err := dispatcher.Dispatch(ev); err != nil {
			slog.Warn("event dispatch failed", "type", ev.Type, "error", err)
		}
	})
	go streamClient.Run(ctx)

	// Maintenance jobs
	maint := maintenance.New(cache, manager, clk,
		cfg.Maintenance.SweepSchedule,
		cfg.Maintenance.StalePendingSchedule,
		time.Duration(cfg.Maintenance.StalePendingAfterSec)*time.Second)
	if err := maint.Start(); err != nil {
		return fmt.Errorf("start maintenance: %w", err)
	}
	defer maint.Stop()

	// Config hot reload for search tunables
	go func() {
		err := config.Watch(ctx, cfgPath, func(next *config.Config) {
			cache.SetLimits(time.Duration(next.Search.CacheTTLSec)*time.Second, next.Search.CacheMaxEntries)
			searcher.SetTunables(time.Duration(next.Search.DebounceMs)*time.Millisecond, next.Search.AutoSearch)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	// Local HTTP API
	if cfg.HTTP.Enabled {
		apiSrv := httpapi.NewServer(sess, manager, remote, searcher, store, analyzer)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: apiSrv,
		}
		go func() {
			slog.Info("http api started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http api error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				// Re-write PID file since we failed to re-exec
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
