package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/aysunhpl/bigob/internal/chat"
	"github.com/aysunhpl/bigob/internal/config"
	"github.com/aysunhpl/bigob/internal/relay"
	"github.com/aysunhpl/bigob/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP surface needs.
type Deps struct {
	Store   *storage.Store
	Replies *chat.Store
	Relay   *relay.Client
	Board   config.BoardConfig
	Orbit   config.OrbitConfig
	// AdminToken enables the transcript admin routes when non-empty.
	AdminToken string
}

// NewHandler returns the board's HTTP API: kanban card CRUD plus the
// asynchronous chat bridge (outbound relay, inbound webhook, reply polling).
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/cards", handleListCards(deps))
		r.Post("/cards", handleCreateCard(deps))
		r.Get("/cards/column/{column}", handleCardsByColumn(deps))
		r.Get("/cards/search/{query}", handleSearchCards(deps))
		r.Get("/cards/{id}", handleGetCard(deps))
		r.Put("/cards/{id}", handleUpdateCard(deps))
		r.Delete("/cards/{id}", handleDeleteCard(deps))

		r.Get("/board/stats", handleBoardStats(deps))
		r.Get("/board/columns", handleBoardColumns)

		r.Post("/orbit/chat", handleChatSend(deps))
		r.Post("/orbit/webhook", handleWebhook(deps))
		r.Get("/orbit/response/{topic}", handleLatestResponse(deps))
		r.Get("/orbit/responses/{topic}", handleAllResponses(deps))
		r.Delete("/orbit/response/{topic}", handleClearResponses(deps))

		r.Get("/chat/config", handleChatConfig(deps))

		if deps.AdminToken != "" {
			r.Route("/admin", func(r chi.Router) {
				r.Use(BearerAuth(deps.AdminToken))
				r.Get("/transcripts/{topic}", handleListTranscripts(deps))
				r.Delete("/transcripts", handlePurgeTranscripts(deps))
			})
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
