package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aysunhpl/bigob/internal/storage"
)

func newMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return MCPDeps{Store: store}
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestMCPCreateAndListCards(t *testing.T) {
	deps := newMCPDeps(t)

	res, err := mcpCreateCard(deps)(context.Background(), toolRequest(map[string]any{
		"title":       "Wire up CI",
		"description": "GitHub Actions",
		"column":      "in-progress",
	}))
	if err != nil {
		t.Fatalf("create_card: %v", err)
	}
	if res.IsError {
		t.Fatalf("create_card errored: %s", toolText(t, res))
	}

	res, err = mcpListCards(deps)(context.Background(), toolRequest(map[string]any{
		"column": "in-progress",
	}))
	if err != nil {
		t.Fatalf("list_cards: %v", err)
	}
	var cards []storage.Card
	if err := json.Unmarshal([]byte(toolText(t, res)), &cards); err != nil {
		t.Fatalf("decoding list result: %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "Wire up CI" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestMCPCreateCard_Validation(t *testing.T) {
	deps := newMCPDeps(t)

	res, _ := mcpCreateCard(deps)(context.Background(), toolRequest(map[string]any{"title": "  "}))
	if !res.IsError {
		t.Error("blank title accepted")
	}

	res, _ = mcpCreateCard(deps)(context.Background(), toolRequest(map[string]any{
		"title": "x", "column": "limbo",
	}))
	if !res.IsError {
		t.Error("invalid column accepted")
	}
}

func TestMCPMoveCard(t *testing.T) {
	deps := newMCPDeps(t)
	card, err := deps.Store.CreateCard("movable", "", "todo")
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	res, err := mcpMoveCard(deps)(context.Background(), toolRequest(map[string]any{
		"id": float64(card.ID), "column": "done",
	}))
	if err != nil {
		t.Fatalf("move_card: %v", err)
	}
	if res.IsError {
		t.Fatalf("move_card errored: %s", toolText(t, res))
	}

	got, err := deps.Store.GetCard(card.ID)
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if got.Column != "done" {
		t.Errorf("Column = %q, want done", got.Column)
	}
}

func TestMCPMoveCard_Errors(t *testing.T) {
	deps := newMCPDeps(t)

	res, _ := mcpMoveCard(deps)(context.Background(), toolRequest(map[string]any{
		"id": float64(99), "column": "done",
	}))
	if !res.IsError || !strings.Contains(toolText(t, res), "not found") {
		t.Errorf("missing card result = %q", toolText(t, res))
	}

	card, _ := deps.Store.CreateCard("x", "", "todo")
	res, _ = mcpMoveCard(deps)(context.Background(), toolRequest(map[string]any{
		"id": float64(card.ID), "column": "limbo",
	}))
	if !res.IsError {
		t.Error("invalid column accepted")
	}
}

func TestMCPUpdateCard_RequiresAField(t *testing.T) {
	deps := newMCPDeps(t)
	card, _ := deps.Store.CreateCard("x", "", "todo")

	res, _ := mcpUpdateCard(deps)(context.Background(), toolRequest(map[string]any{
		"id": float64(card.ID),
	}))
	if !res.IsError {
		t.Error("update with no fields accepted")
	}
}

func TestMCPDeleteCard(t *testing.T) {
	deps := newMCPDeps(t)
	card, _ := deps.Store.CreateCard("doomed", "", "todo")

	res, err := mcpDeleteCard(deps)(context.Background(), toolRequest(map[string]any{
		"id": float64(card.ID),
	}))
	if err != nil {
		t.Fatalf("delete_card: %v", err)
	}
	if res.IsError {
		t.Fatalf("delete_card errored: %s", toolText(t, res))
	}

	if _, err := deps.Store.GetCard(card.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("card still present: err = %v", err)
	}
}

func TestMCPSearchCards(t *testing.T) {
	deps := newMCPDeps(t)
	deps.Store.CreateCard("Deploy API", "", "todo")
	deps.Store.CreateCard("Groceries", "", "todo")

	res, err := mcpSearchCards(deps)(context.Background(), toolRequest(map[string]any{
		"query": "api",
	}))
	if err != nil {
		t.Fatalf("search_cards: %v", err)
	}
	var cards []storage.Card
	if err := json.Unmarshal([]byte(toolText(t, res)), &cards); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(cards) != 1 || cards[0].Title != "Deploy API" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestMCPBoardStatsResource(t *testing.T) {
	deps := newMCPDeps(t)
	deps.Store.CreateCard("a", "", "todo")
	deps.Store.CreateCard("b", "", "done")

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "board://stats"

	contents, err := mcpResourceStats(deps)(context.Background(), req)
	if err != nil {
		t.Fatalf("reading resource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents type = %T", contents[0])
	}

	var stats map[string]int
	if err := json.Unmarshal([]byte(text.Text), &stats); err != nil {
		t.Fatalf("decoding stats: %v", err)
	}
	if stats["total"] != 2 {
		t.Errorf("total = %d, want 2", stats["total"])
	}
}
