package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aysunhpl/bigob/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
}

// NewMCPServer creates an MCP server exposing the kanban board as tools, so
// an MCP-capable assistant can read and mutate cards directly.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bigob",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bigob — kanban board tools. Columns: todo, in-progress, done."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("list_cards",
			mcp.WithDescription("List board cards, optionally filtered to a single column."),
			mcp.WithString("column", mcp.Description("Column filter: todo, in-progress or done")),
		),
		mcpListCards(deps),
	)

	s.AddTool(
		mcp.NewTool("create_card",
			mcp.WithDescription("Create a new card on the board."),
			mcp.WithString("title", mcp.Description("Card title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Card description")),
			mcp.WithString("column", mcp.Description("Target column (default todo)")),
		),
		mcpCreateCard(deps),
	)

	s.AddTool(
		mcp.NewTool("update_card",
			mcp.WithDescription("Update a card's title, description or column. Omitted fields are left unchanged."),
			mcp.WithNumber("id", mcp.Description("Card id"), mcp.Required()),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("column", mcp.Description("New column")),
		),
		mcpUpdateCard(deps),
	)

	s.AddTool(
		mcp.NewTool("move_card",
			mcp.WithDescription("Move a card to another column."),
			mcp.WithNumber("id", mcp.Description("Card id"), mcp.Required()),
			mcp.WithString("column", mcp.Description("Target column: todo, in-progress or done"), mcp.Required()),
		),
		mcpMoveCard(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_card",
			mcp.WithDescription("Delete a card from the board."),
			mcp.WithNumber("id", mcp.Description("Card id"), mcp.Required()),
		),
		mcpDeleteCard(deps),
	)

	s.AddTool(
		mcp.NewTool("search_cards",
			mcp.WithDescription("Search cards by title and description."),
			mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
		),
		mcpSearchCards(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"board://stats",
			"Board Statistics",
			mcp.WithResourceDescription("Card counts per column plus the total"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpListCards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		column := req.GetString("column", "")

		var (
			cards []storage.Card
			err   error
		)
		if column == "" {
			cards, err = deps.Store.ListCards()
		} else {
			if !storage.IsValidColumn(column) {
				return mcpError(fmt.Sprintf("invalid column %q; valid columns: %s", column, strings.Join(storage.ValidColumns, ", "))), nil
			}
			cards, err = deps.Store.ListCardsByColumn(column)
		}
		if err != nil {
			return mcpError(fmt.Sprintf("listing cards failed: %v", err)), nil
		}

		return mcpCards(cards)
	}
}

func mcpCreateCard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return mcpError("title must not be empty"), nil
		}

		column := req.GetString("column", "todo")
		if !storage.IsValidColumn(column) {
			return mcpError(fmt.Sprintf("invalid column %q", column)), nil
		}

		card, err := deps.Store.CreateCard(title, req.GetString("description", ""), column)
		if err != nil {
			return mcpError(fmt.Sprintf("creating card failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Created card %d (%s) in %s", card.ID, card.Title, card.Column)), nil
	}
}

func mcpUpdateCard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		var upd storage.CardUpdate
		if title := strings.TrimSpace(req.GetString("title", "")); title != "" {
			upd.Title = &title
		}
		if desc := req.GetString("description", ""); desc != "" {
			upd.Description = &desc
		}
		if column := req.GetString("column", ""); column != "" {
			if !storage.IsValidColumn(column) {
				return mcpError(fmt.Sprintf("invalid column %q", column)), nil
			}
			upd.Column = &column
		}
		if upd.Title == nil && upd.Description == nil && upd.Column == nil {
			return mcpError("nothing to update: provide title, description or column"), nil
		}

		card, err := deps.Store.UpdateCard(int64(id), upd)
		if err != nil {
			return mcpCardError(int64(id), err), nil
		}

		return mcpText(fmt.Sprintf("Updated card %d (%s) in %s", card.ID, card.Title, card.Column)), nil
	}
}

func mcpMoveCard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		column, err := req.RequireString("column")
		if err != nil {
			return mcpError("column is required"), nil
		}
		if !storage.IsValidColumn(column) {
			return mcpError(fmt.Sprintf("invalid column %q; valid columns: %s", column, strings.Join(storage.ValidColumns, ", "))), nil
		}

		card, err := deps.Store.UpdateCard(int64(id), storage.CardUpdate{Column: &column})
		if err != nil {
			return mcpCardError(int64(id), err), nil
		}

		return mcpText(fmt.Sprintf("Moved card %d (%s) to %s", card.ID, card.Title, card.Column)), nil
	}
}

func mcpDeleteCard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		card, err := deps.Store.DeleteCard(int64(id))
		if err != nil {
			return mcpCardError(int64(id), err), nil
		}

		return mcpText(fmt.Sprintf("Deleted card %d (%s)", card.ID, card.Title)), nil
	}
}

func mcpSearchCards(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		cards, err := deps.Store.SearchCards(query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcpCards(cards)
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stats, err := deps.Store.BoardStats()
		if err != nil {
			return nil, fmt.Errorf("computing board stats: %w", err)
		}

		b, err := json.Marshal(stats)
		if err != nil {
			return nil, fmt.Errorf("marshaling board stats: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpCards(cards []storage.Card) (*mcp.CallToolResult, error) {
	if len(cards) == 0 {
		return mcpText("[]"), nil
	}
	b, err := json.Marshal(cards)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal cards: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpCardError(id int64, err error) *mcp.CallToolResult {
	if errors.Is(err, storage.ErrNotFound) {
		return mcpError(fmt.Sprintf("card %d not found", id))
	}
	return mcpError(fmt.Sprintf("card %d: %v", id, err))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
