package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aysunhpl/bigob/internal/chat"
	"github.com/aysunhpl/bigob/internal/config"
	"github.com/aysunhpl/bigob/internal/poll"
)

type cardView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Column      string `json:"column"`
	UpdatedAt   string `json:"updated_at"`
}

// --- cards ---

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Manage board cards",
}

var cardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cards, optionally filtered by column",
	RunE: func(cmd *cobra.Command, args []string) error {
		column, _ := cmd.Flags().GetString("column")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/api/cards"
		if column != "" {
			path = "/api/cards/column/" + column
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var cards []cardView
		if err := decodeJSON(resp, &cards); err != nil {
			return err
		}

		if len(cards) == 0 {
			fmt.Println("No cards.")
			return nil
		}
		printCards(cards)
		return nil
	},
}

var cardsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a card to the board",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.Join(args, " ")
		description, _ := cmd.Flags().GetString("description")
		column, _ := cmd.Flags().GetString("column")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/cards", map[string]any{
			"title":       title,
			"description": description,
			"column":      column,
		})
		if err != nil {
			return err
		}

		var card cardView
		if err := decodeJSON(resp, &card); err != nil {
			return err
		}

		printSuccess("Created card %d in %s", card.ID, card.Column)
		return nil
	},
}

var cardsMoveCmd = &cobra.Command{
	Use:   "move <id> <column>",
	Short: "Move a card to another column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid card id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), fmt.Sprintf("/api/cards/%d", id), map[string]any{
			"column": args[1],
		})
		if err != nil {
			return err
		}

		var card cardView
		if err := decodeJSON(resp, &card); err != nil {
			return err
		}

		printSuccess("Moved card %d to %s", card.ID, card.Column)
		return nil
	},
}

var cardsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid card id %q", args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/api/cards/%d", id))
		if err != nil {
			return err
		}

		var result struct {
			Deleted cardView `json:"deleted"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted card %d (%s)", result.Deleted.ID, result.Deleted.Title)
		return nil
	},
}

func printCards(cards []cardView) {
	for _, c := range cards {
		title := c.Title
		if len(title) > 60 {
			title = title[:60] + "..."
		}
		fmt.Printf("%s  %s  %s\n",
			colorize(colorCyan, fmt.Sprintf("#%-4d", c.ID)),
			colorize(colorBold, fmt.Sprintf("%-12s", c.Column)),
			title,
		)
	}
}

func init() {
	cardsListCmd.Flags().String("column", "", "filter by column (todo, in-progress, done)")
	cardsAddCmd.Flags().String("description", "", "card description")
	cardsAddCmd.Flags().String("column", "todo", "target column")
	cardsCmd.AddCommand(cardsListCmd)
	cardsCmd.AddCommand(cardsAddCmd)
	cardsCmd.AddCommand(cardsMoveCmd)
	cardsCmd.AddCommand(cardsRmCmd)
}

// --- board ---

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Board-level views",
}

var boardStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show card counts per column",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/board/stats")
		if err != nil {
			return err
		}

		var stats map[string]int
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("todo", "%d", stats["todo"])
		printStatus("in-progress", "%d", stats["in-progress"])
		printStatus("done", "%d", stats["done"])
		printStatus("total", "%d", stats["total"])
		return nil
	},
}

func init() {
	boardCmd.AddCommand(boardStatsCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the board assistant",
}

var chatSendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a message and wait for the assistant's reply",
	Long: `Send a message and wait for the assistant's reply.

The message is relayed to the Orbit service; the reply arrives
asynchronously through the server's webhook. This command polls the
server until a reply lands, the attempt limit runs out, or Ctrl-C.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		topicID := cfg.Board.TopicID

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Note the newest reply already buffered, so the poll only surfaces
		// a reply to THIS message.
		lastSeen, err := latestTimestamp(ctx, client, topicID)
		if err != nil {
			return err
		}

		resp, err := client.post(ctx, "/api/orbit/chat", map[string]any{
			"message":  message,
			"topic_id": topicID,
		})
		if err != nil {
			return err
		}
		var sent struct {
			Status    string `json:"status"`
			MessageID string `json:"message_id"`
		}
		if err := decodeJSON(resp, &sent); err != nil {
			return err
		}

		printStep("Message %s sent; waiting for reply (Ctrl-C to stop)...", sent.MessageID)

		check := func(ctx context.Context, topicID int64) (chat.ReplyRecord, bool, error) {
			return fetchLatest(ctx, client, topicID)
		}
		controller := poll.NewController(check,
			time.Duration(cfg.Poll.IntervalMS)*time.Millisecond,
			cfg.Poll.MaxAttempts,
		)

		result := controller.Start(ctx, topicID, lastSeen).Wait()
		switch result.State {
		case poll.StateDelivered:
			fmt.Println(result.Reply.Text)
		case poll.StateExhausted:
			printWarning("No reply after %d attempts. Check later with: bigob chat history %d", cfg.Poll.MaxAttempts, topicID)
		case poll.StateCancelled:
			printWarning("Stopped waiting. The reply may still arrive; check: bigob chat history %d", topicID)
		}
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history [topic]",
	Short: "Show buffered assistant replies for a topic",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, err := topicArg(args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/orbit/responses/%d", topicID))
		if err != nil {
			return err
		}

		var result struct {
			Responses []chat.ReplyRecord `json:"responses"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Responses) == 0 {
			fmt.Println("No replies buffered.")
			return nil
		}
		for _, r := range result.Responses {
			ts := time.UnixMilli(r.ReceivedAt).Format("2006-01-02 15:04:05")
			fmt.Printf("%s  %s\n", colorize(colorCyan, ts), r.Text)
		}
		return nil
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear [topic]",
	Short: "Clear buffered replies for a topic",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topicID, err := topicArg(args)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/api/orbit/response/%d", topicID))
		if err != nil {
			return err
		}

		var result struct {
			Success bool `json:"success"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Cleared replies for topic %d", topicID)
		return nil
	},
}

func topicArg(args []string) (int64, error) {
	if len(args) == 0 {
		cfg, err := config.Load()
		if err != nil {
			return 0, err
		}
		return cfg.Board.TopicID, nil
	}
	topicID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid topic id %q", args[0])
	}
	return topicID, nil
}

func fetchLatest(ctx context.Context, client *apiClient, topicID int64) (chat.ReplyRecord, bool, error) {
	resp, err := client.get(ctx, fmt.Sprintf("/api/orbit/response/%d", topicID))
	if err != nil {
		return chat.ReplyRecord{}, false, err
	}

	var body struct {
		HasResponse bool   `json:"hasResponse"`
		Response    string `json:"response"`
		MessageID   string `json:"message_id"`
		Timestamp   int64  `json:"timestamp"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return chat.ReplyRecord{}, false, err
	}
	if !body.HasResponse {
		return chat.ReplyRecord{}, false, nil
	}
	return chat.ReplyRecord{
		Text:       body.Response,
		MessageID:  body.MessageID,
		ReceivedAt: body.Timestamp,
	}, true, nil
}

func latestTimestamp(ctx context.Context, client *apiClient, topicID int64) (int64, error) {
	rec, ok, err := fetchLatest(ctx, client, topicID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return rec.ReceivedAt, nil
}

func init() {
	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatHistoryCmd)
	chatCmd.AddCommand(chatClearCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export or purge stored data",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all cards as JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var writer *os.File
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		} else {
			writer = os.Stdout
		}

		resp, err := client.get(cmd.Context(), "/api/cards")
		if err != nil {
			return err
		}
		var cards []any
		if err := decodeJSON(resp, &cards); err != nil {
			return err
		}

		enc := json.NewEncoder(writer)
		for _, card := range cards {
			record := map[string]any{"type": "card", "data": card}
			if err := enc.Encode(record); err != nil {
				return err
			}
		}

		if output != "" {
			printSuccess("Exported %d cards to %s", len(cards), output)
		}
		return nil
	},
}

var dataPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL cards. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Deleting cards...")
		failures, err := purgeCards(cmd.Context(), client)
		if err != nil {
			return err
		}
		if failures > 0 {
			printWarning("%d cards could not be deleted", failures)
			return nil
		}

		printSuccess("All cards purged")
		return nil
	},
}

func purgeCards(ctx context.Context, client *apiClient) (int, error) {
	failures := 0
	for {
		resp, err := client.get(ctx, "/api/cards")
		if err != nil {
			return failures, err
		}
		var cards []struct {
			ID int64 `json:"id"`
		}
		if err := decodeJSON(resp, &cards); err != nil {
			return failures, err
		}
		if len(cards) == 0 {
			return failures, nil
		}

		deleted := 0
		for _, card := range cards {
			delResp, err := client.delete(ctx, fmt.Sprintf("/api/cards/%d", card.ID))
			if err != nil {
				return failures, err
			}
			if delResp.StatusCode >= 400 {
				failures++
			} else {
				deleted++
			}
			delResp.Body.Close()
		}
		// Nothing deletable left; avoid spinning on permanent failures.
		if deleted == 0 {
			return failures, nil
		}
	}
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataPurgeCmd.Flags().Bool("confirm", false, "confirm purge")
	dataCmd.AddCommand(dataExportCmd)
	dataCmd.AddCommand(dataPurgeCmd)
}
