// Package api exposes the search service over a small HTTP surface. The
// chat-frontend glue that renders results into replies lives outside this
// repository and consumes these endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/schema"

	"chatgrep/internal/search"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// searchParams is the /search query string shape.
type searchParams struct {
	Keyword  string `schema:"q"`
	ChatID   int64  `schema:"chat_id"`
	UserID   int64  `schema:"user_id"`
	Kind     string `schema:"kind"`
	DateFrom int64  `schema:"date_from"`
	DateTo   int64  `schema:"date_to"`
	PageSize int    `schema:"page_size"`
	Token    string `schema:"token"`
}

// Handler serves the search API.
type Handler struct {
	svc *search.Service
}

// NewHandler builds the API handler.
func NewHandler(svc *search.Service) *Handler {
	return &Handler{svc: svc}
}

// Router returns the HTTP routes.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params searchParams
	if err := queryDecoder.Decode(&params, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	resp, err := h.svc.Search(r.Context(), search.Request{
		Keyword:  params.Keyword,
		ChatID:   params.ChatID,
		UserID:   params.UserID,
		Kind:     params.Kind,
		DateFrom: params.DateFrom,
		DateTo:   params.DateTo,
		PageSize: params.PageSize,
		Token:    params.Token,
	})
	if err != nil {
		if errors.Is(err, search.ErrBadToken) {
			writeError(w, http.StatusBadRequest, "invalid page token")
			return
		}
		slog.Error("Search request failed", "error", err)
		writeError(w, http.StatusBadGateway, "search backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
