package channels

import (
	"context"
	"errors"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/coursewatch/kit"
)

// channelSummary is a channel row without its config, which holds secrets.
type channelSummary struct {
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	Enabled   bool   `json:"enabled"`
	UpdatedAt int64  `json:"updated_at"`
}

func summarize(r ChannelRow) channelSummary {
	return channelSummary{Name: r.Name, Platform: r.Platform, Enabled: r.Enabled, UpdatedAt: r.UpdatedAt}
}

type setEnabledRequest struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// RegisterMCP registers the channel admin tools on an MCP server. Changes
// reach the dispatcher through its Watch loop.
func (a *Admin) RegisterMCP(srv *mcp.Server, logger *slog.Logger) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "coursewatch_list_channels",
		Description: "List the notification channels stored in the database (config omitted)",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}, kit.Logging(logger, "list_channels")(a.listEndpoint), kit.DecodeArgs[struct{}])

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "coursewatch_set_channel_enabled",
		Description: "Enable or disable a notification channel without touching its config",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string", "description": "Channel name"},
				"enabled": map[string]any{"type": "boolean"},
			},
			"required": []string{"name", "enabled"},
		},
	}, kit.Logging(logger, "set_channel_enabled")(a.setEnabledEndpoint), kit.DecodeArgs[setEnabledRequest])
}

func (a *Admin) listEndpoint(ctx context.Context, _ any) (any, error) {
	rows, err := a.ListChannels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]channelSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summarize(r))
	}
	return out, nil
}

func (a *Admin) setEnabledEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*setEnabledRequest)
	if r.Name == "" {
		return nil, errors.New("admin: name is required")
	}
	if err := a.SetEnabled(ctx, r.Name, r.Enabled); err != nil {
		return nil, err
	}
	row, err := a.GetChannel(ctx, r.Name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &ErrChannelNotFound{Channel: r.Name}
	}
	return summarize(*row), nil
}
