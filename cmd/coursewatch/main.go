// CLAUDE:SUMMARY CLI entry point for coursewatch: loads config and .env, wires portal, SQLite state, notification channels, status API and MCP, then runs the check schedule.
// Command coursewatch watches a Moodle portal for course and assignment
// changes and notifies the configured channels.
//
// Usage:
//
//	coursewatch -config coursewatch.yaml            # run on schedule
//	coursewatch -config coursewatch.yaml -once      # one check, report on stdout
//	coursewatch -config coursewatch.yaml -dry-run   # print notices, persist nothing
//	coursewatch -config coursewatch.yaml -reset-state -once
//	coursewatch -telegram-chats                     # list chat ids seen by the bot
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/coursewatch/channels"
	"github.com/hazyhaar/coursewatch/shield"
	"github.com/hazyhaar/coursewatch/tracker"
)

const version = "1.0.0"

type options struct {
	configPath    string
	once          bool
	dryRun        bool
	resetState    bool
	telegramChats bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "coursewatch.yaml", "path to the YAML config file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&opts.once, "once", false, "run a single check cycle, print its report and exit")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "print notices to stdout only and persist nothing")
	flag.BoolVar(&opts.resetState, "reset-state", false, "forget stored state before starting (next check is a cold start)")
	flag.BoolVar(&opts.telegramChats, "telegram-chats", false, "list the chats that messaged the Telegram bot and exit")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("coursewatch: .env not loaded", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, opts); err != nil {
		if errors.Is(err, tracker.ErrTooManyFailures) {
			logger.Error("coursewatch: giving up", "error", err)
		} else {
			logger.Error("coursewatch: fatal", "error", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, opts options) error {
	if opts.telegramChats {
		return listTelegramChats(ctx, opts.configPath)
	}

	cfg, err := tracker.LoadConfigFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := tracker.OpenDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := channels.Init(db); err != nil {
		return err
	}
	if err := shield.Init(db); err != nil {
		return err
	}

	dispatcher := channels.NewDispatcher(channels.WithLogger(logger))
	defer dispatcher.Close()
	if opts.dryRun {
		dispatcher.Add("stdout", "stdout", channels.NewWriterChannel("stdout", os.Stdout, channels.StdoutConfig{}))
	} else {
		if err := seedChannels(ctx, logger, db, cfg.Channels); err != nil {
			return err
		}
		dispatcher.RegisterPlatform("telegram", channels.TelegramFactory())
		dispatcher.RegisterPlatform("discord", channels.DiscordFactory())
		dispatcher.RegisterPlatform("webhook", channels.WebhookFactory())
		dispatcher.RegisterPlatform("stdout", channels.StdoutFactory())
		if err := dispatcher.Reload(ctx, db); err != nil {
			return fmt.Errorf("channels: %w", err)
		}
		go dispatcher.Watch(ctx, db, 2*time.Second)
	}

	fetcher, err := tracker.NewPortalClient(cfg.Portal, logger)
	if err != nil {
		return err
	}
	svc, err := tracker.New(cfg, fetcher, db, dispatcher,
		tracker.WithLogger(logger),
		tracker.WithDryRun(opts.dryRun),
	)
	if err != nil {
		return err
	}

	if opts.resetState {
		if err := svc.ResetState(ctx); err != nil {
			return err
		}
	}

	if opts.once {
		rep, err := svc.RunCycle(ctx)
		if rep != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(rep)
		}
		return err
	}

	if cfg.HTTP.Addr != "" {
		stopHTTP := serveHTTP(ctx, logger, db, svc, cfg.HTTP.Addr)
		defer stopHTTP()
	}

	logger.Info("coursewatch: running", "courses", svc.Registry().Len(), "check_times", cfg.CheckTimes, "dry_run", opts.dryRun)
	return svc.Run(ctx)
}

// seedChannels makes the channels table match the configured channels:
// listed channels are upserted and any other row is deleted.
func seedChannels(ctx context.Context, logger *slog.Logger, db *sql.DB, list []tracker.ChannelConfig) error {
	admin := channels.NewAdmin(db)
	keep := make(map[string]bool, len(list))
	for _, ch := range list {
		raw, err := ch.JSON()
		if err != nil {
			return err
		}
		if err := admin.UpsertChannel(ctx, ch.Name, ch.Platform, ch.IsEnabled(), raw); err != nil {
			return fmt.Errorf("seed channel %s: %w", ch.Name, err)
		}
		keep[ch.Name] = true
	}

	rows, err := admin.ListChannels(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if keep[r.Name] {
			continue
		}
		if err := admin.DeleteChannel(ctx, r.Name); err != nil {
			return fmt.Errorf("remove channel %s: %w", r.Name, err)
		}
		logger.Info("coursewatch: channel removed", "channel", r.Name, "platform", r.Platform)
	}
	return nil
}
