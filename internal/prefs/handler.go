package prefs

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ecoshare/internal/common"
)

type AddSearchRequest struct {
	Term string `json:"term"`
}

type SearchesResponse struct {
	Terms []string `json:"terms"`
}

type WelcomeResponse struct {
	Shown bool `json:"shown"`
}

// Handler serves per-user preferences for clients that keep them on the
// server instead of locally.
type Handler struct {
	searches *RecentSearches
	welcome  *WelcomeMessages
	log      *zap.Logger
}

func NewHandler(searches *RecentSearches, welcome *WelcomeMessages, log *zap.Logger) *Handler {
	return &Handler{searches: searches, welcome: welcome, log: log}
}

// Register mounts the preference routes behind the auth middleware.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/searches", h.ListSearches).Methods(http.MethodGet)
	r.HandleFunc("/searches", h.AddSearch).Methods(http.MethodPost)
	r.HandleFunc("/searches", h.ClearSearches).Methods(http.MethodDelete)
	r.HandleFunc("/conversations/{id}/welcome", h.WelcomeShown).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/welcome", h.MarkWelcomeShown).Methods(http.MethodPut)
}

func (h *Handler) ListSearches(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	terms, err := h.searches.List(r.Context(), user.ID)
	if err != nil {
		h.fail(w, "list_searches_failed", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, SearchesResponse{Terms: terms})
}

func (h *Handler) AddSearch(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req AddSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	terms, err := h.searches.Add(r.Context(), user.ID, req.Term)
	if err != nil {
		h.fail(w, "add_search_failed", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, SearchesResponse{Terms: terms})
}

func (h *Handler) ClearSearches(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	if err := h.searches.Clear(r.Context(), user.ID); err != nil {
		h.fail(w, "clear_searches_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) WelcomeShown(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	shown, err := h.welcome.Shown(r.Context(), user.ID, mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "welcome_lookup_failed", err)
		return
	}
	common.WriteJSON(w, http.StatusOK, WelcomeResponse{Shown: shown})
}

func (h *Handler) MarkWelcomeShown(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	if err := h.welcome.MarkShown(r.Context(), user.ID, mux.Vars(r)["id"]); err != nil {
		h.fail(w, "welcome_mark_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, zap.Error(err))
	common.WriteError(w, http.StatusInternalServerError, "internal error")
}
