package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/coursewatch/channels"
	"github.com/hazyhaar/coursewatch/shield"
	"github.com/hazyhaar/coursewatch/tracker"
)

// newRouter mounts the status API and the MCP endpoint behind the shield
// stack. The MCP server also carries the channel admin tools.
func newRouter(ctx context.Context, logger *slog.Logger, db *sql.DB, svc *tracker.Service) http.Handler {
	stack, rl := shield.APIStack(db, logger)
	go rl.Run(ctx)

	r := chi.NewRouter()
	for _, mw := range stack {
		r.Use(mw)
	}
	svc.RegisterHTTP(r)

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "coursewatch", Version: version}, nil)
	svc.RegisterMCP(mcpSrv)
	channels.NewAdmin(db).RegisterMCP(mcpSrv, logger)
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	return r
}

// serveHTTP starts the status server and returns a function that shuts it
// down.
func serveHTTP(ctx context.Context, logger *slog.Logger, db *sql.DB, svc *tracker.Service, addr string) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(ctx, logger, db, svc),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("coursewatch: http listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("coursewatch: http server", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("coursewatch: http shutdown", "error", err)
		}
	}
}

// listTelegramChats prints the chats the bot has seen. The token comes from
// TELEGRAM_BOT_TOKEN, or from the first telegram channel of the config.
func listTelegramChats(ctx context.Context, configPath string) error {
	token := os.Getenv(tracker.EnvTelegramToken)
	apiURL := ""
	if token == "" {
		cfg, err := tracker.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("%s is not set and the config cannot be read: %w", tracker.EnvTelegramToken, err)
		}
		for _, ch := range cfg.Channels {
			if ch.Platform != "telegram" {
				continue
			}
			raw, err := ch.JSON()
			if err != nil {
				return err
			}
			var tc channels.TelegramConfig
			if err := json.Unmarshal(raw, &tc); err != nil {
				return fmt.Errorf("channel %s: %w", ch.Name, err)
			}
			token, apiURL = tc.BotToken, tc.APIURL
			break
		}
	}
	chats, err := channels.TelegramChats(ctx, apiURL, token)
	if err != nil {
		return err
	}
	if len(chats) == 0 {
		fmt.Println("No chats found. Send a message to the bot (or add it to a group) and try again.")
		return nil
	}
	for _, c := range chats {
		fmt.Printf("%d\t%s\t%s\n", c.ID, c.Type, c.Title)
	}
	return nil
}
