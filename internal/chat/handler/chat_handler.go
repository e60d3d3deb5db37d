package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ecoshare/internal/chat/service"
	"ecoshare/internal/common"
	"ecoshare/internal/dbmysql"
)

// ChatHandler exposes the chat service over JSON/HTTP. Every route expects
// the auth middleware to have placed the caller in the request context.
type ChatHandler struct {
	chatService service.ChatService
	log         *zap.Logger
}

func NewChatHandler(chatService service.ChatService, log *zap.Logger) *ChatHandler {
	return &ChatHandler{chatService: chatService, log: log}
}

// Register mounts the conversation routes on r.
func (h *ChatHandler) Register(r *mux.Router) {
	r.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations", h.StartConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", h.GetMessageHistory).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", h.SendMessage).Methods(http.MethodPost)
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	summaries, err := h.chatService.ListConversations(r.Context(), user.ID)
	if err != nil {
		h.fail(w, "list_conversations_failed", err)
		return
	}

	out := make([]ConversationDTO, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toConversationDTO(s))
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *ChatHandler) StartConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	id, err := h.chatService.StartConversation(r.Context(), user.ID, req.ParticipantID)
	if err != nil {
		h.fail(w, "start_conversation_failed", err)
		return
	}

	summaries, err := h.chatService.ListConversations(r.Context(), user.ID)
	if err != nil {
		h.fail(w, "start_conversation_failed", err)
		return
	}
	for _, s := range summaries {
		if s.ConversationID == id {
			common.WriteJSON(w, http.StatusCreated, toConversationDTO(s))
			return
		}
	}
	common.WriteJSON(w, http.StatusCreated, ConversationDTO{ID: id, Participant: ParticipantDTO{ID: req.ParticipantID}})
}

func (h *ChatHandler) GetMessageHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	messages, err := h.chatService.GetMessageHistory(r.Context(), mux.Vars(r)["id"], user.ID)
	if err != nil {
		h.fail(w, "get_history_failed", err)
		return
	}

	out := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, toMessageDTO(m))
	}
	common.WriteJSON(w, http.StatusOK, out)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	saved, err := h.chatService.SendMessage(r.Context(), &dbmysql.Message{
		ConversationID: mux.Vars(r)["id"],
		SenderID:       user.ID,
		Content:        req.Content,
	})
	if err != nil {
		h.fail(w, "send_message_failed", err)
		return
	}

	common.WriteJSON(w, http.StatusCreated, SendMessageResponse{Success: true, Message: toMessageDTO(saved)})
}

func (h *ChatHandler) fail(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		common.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotParticipant):
		common.WriteError(w, http.StatusForbidden, err.Error())
	default:
		h.log.Error(event, zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
