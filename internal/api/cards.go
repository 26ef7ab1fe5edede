package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aysunhpl/bigob/internal/storage"
)

type createCardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Column      string `json:"column"`
}

type updateCardRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Column      *string `json:"column"`
}

func handleListCards(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := deps.Store.ListCards()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing cards: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, cardsOrEmpty(cards))
	}
}

func handleCreateCard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "title is required")
			return
		}
		column := req.Column
		if column == "" {
			column = "todo"
		}
		if !storage.IsValidColumn(column) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid column %q", column)
			return
		}

		card, err := deps.Store.CreateCard(title, strings.TrimSpace(req.Description), column)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating card: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

func handleGetCard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cardID(w, r)
		if !ok {
			return
		}
		card, err := deps.Store.GetCard(id)
		if err != nil {
			cardError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func handleUpdateCard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cardID(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req updateCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		upd := storage.CardUpdate{Description: req.Description}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "title must not be empty")
				return
			}
			upd.Title = &title
		}
		if req.Column != nil {
			if !storage.IsValidColumn(*req.Column) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid column %q", *req.Column)
				return
			}
			upd.Column = req.Column
		}

		card, err := deps.Store.UpdateCard(id, upd)
		if err != nil {
			cardError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func handleDeleteCard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cardID(w, r)
		if !ok {
			return
		}
		card, err := deps.Store.DeleteCard(id)
		if err != nil {
			cardError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": card})
	}
}

func handleCardsByColumn(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		column := chi.URLParam(r, "column")
		if !storage.IsValidColumn(column) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid column %q", column)
			return
		}
		cards, err := deps.Store.ListCardsByColumn(column)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing cards: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, cardsOrEmpty(cards))
	}
}

func handleSearchCards(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := chi.URLParam(r, "query")
		cards, err := deps.Store.SearchCards(query)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "searching cards: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, cardsOrEmpty(cards))
	}
}

func handleBoardStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.BoardStats()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "computing stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleBoardColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"columns": storage.ValidColumns})
}

func cardID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid card id")
		return 0, false
	}
	return id, true
}

func cardError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "card %d not found", id)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "card %d: %v", id, err)
}

// cardsOrEmpty keeps list responses as JSON arrays, never null.
func cardsOrEmpty(cards []storage.Card) []storage.Card {
	if cards == nil {
		return []storage.Card{}
	}
	return cards
}
