package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aysunhpl/bigob/internal/chat"
	"github.com/aysunhpl/bigob/internal/relay"
	"github.com/aysunhpl/bigob/internal/storage"
)

type chatSendRequest struct {
	Message string `json:"message"`
	TopicID int64  `json:"topic_id"`
	UserID  int64  `json:"user_id"`
}

// handleChatSend relays a board message to the external assistant. The relay
// is fire-and-forget: success means the upstream accepted the notification,
// not that a reply exists. Replies arrive later through the webhook.
func handleChatSend(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatSendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		topicID := req.TopicID
		if topicID == 0 {
			topicID = deps.Board.TopicID
		}
		userID := req.UserID
		if userID == 0 {
			userID = deps.Board.UserID
		}

		msg := relay.Message{
			ID:      strconv.FormatInt(time.Now().UnixMilli(), 10),
			TopicID: topicID,
			UserID:  userID,
			Text:    req.Message,
		}

		if err := deps.Relay.Send(r.Context(), msg); err != nil {
			slog.Error("relay send failed", "topic_id", topicID, "error", err)
			httpError(w, http.StatusBadGateway, "upstream_error", "relaying message: %v", err)
			return
		}

		archiveTranscript(deps, storage.TranscriptEntry{
			ID:      uuid.New().String(),
			TopicID: topicID,
			UserID:  userID,
			Role:    "user",
			Text:    req.Message,
		})

		slog.Info("message relayed", "topic_id", topicID, "message_id", msg.ID)
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "sent",
			"message_id": msg.ID,
			"topic_id":   topicID,
		})
	}
}

// handleWebhook ingests an assistant reply. The reply is appended to the
// store before the 200 goes out, so a poller observing the ack can already
// read it.
func handleWebhook(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}

		reply, err := chat.Normalize(raw, deps.Board.TopicID)
		if err != nil {
			slog.Warn("webhook payload rejected", "error", err)
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unparseable payload: %v", err)
			return
		}

		deps.Replies.Append(reply.TopicID, reply.Record)

		archiveTranscript(deps, storage.TranscriptEntry{
			ID:      uuid.New().String(),
			TopicID: reply.TopicID,
			UserID:  reply.Record.UserID,
			Role:    "assistant",
			Text:    reply.Record.Text,
		})

		slog.Info("reply received", "topic_id", reply.TopicID, "message_id", reply.Record.MessageID)
		writeJSON(w, http.StatusOK, map[string]any{
			"received": true,
			"topic_id": reply.TopicID,
		})
	}
}

func handleLatestResponse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID, ok := topicParam(w, r)
		if !ok {
			return
		}
		rec, found := deps.Replies.Latest(topicID)
		if !found {
			writeJSON(w, http.StatusOK, map[string]any{"hasResponse": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"hasResponse": true,
			"response":    rec.Text,
			"message_id":  rec.MessageID,
			"timestamp":   rec.ReceivedAt,
		})
	}
}

func handleAllResponses(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID, ok := topicParam(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"responses": deps.Replies.All(topicID),
		})
	}
}

func handleClearResponses(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID, ok := topicParam(w, r)
		if !ok {
			return
		}
		deps.Replies.Clear(topicID)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// handleChatConfig tells the board widget where its messages go.
func handleChatConfig(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"topic_id":       deps.Board.TopicID,
			"user_id":        deps.Board.UserID,
			"user_email":     deps.Board.UserEmail,
			"user_name":      deps.Board.UserName,
			"orbit_base_url": deps.Orbit.BaseURL,
		})
	}
}

func handleListTranscripts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topicID, ok := topicParam(w, r)
		if !ok {
			return
		}
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := deps.Store.ListTranscript(topicID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing transcripts: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.TranscriptEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"transcripts": entries})
	}
}

func handlePurgeTranscripts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Store.PurgeTranscripts()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "purging transcripts: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"purged": n})
	}
}

// archiveTranscript is best-effort: the archive is audit history, a write
// failure must not fail the chat flow.
func archiveTranscript(deps Deps, e storage.TranscriptEntry) {
	if err := deps.Store.AppendTranscript(e); err != nil {
		slog.Warn("transcript archive failed", "topic_id", e.TopicID, "role", e.Role, "error", err)
	}
}

func topicParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	topicID, err := strconv.ParseInt(chi.URLParam(r, "topic"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid topic id")
		return 0, false
	}
	return topicID, true
}
