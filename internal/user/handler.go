package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"ecoshare/internal/common"
)

type RegisterRequest struct {
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string                   `json:"token"`
	User  common.AuthenticatedUser `json:"user"`
}

// Handler wires HTTP -> UserService
type Handler struct {
	userService UserService
	log         *zap.Logger
}

func NewHandler(userService UserService, log *zap.Logger) *Handler {
	return &Handler{userService: userService, log: log}
}

// RegisterPublic mounts the routes that do not need a session.
func (h *Handler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
}

// RegisterPrivate mounts routes behind the auth middleware.
func (h *Handler) RegisterPrivate(r *mux.Router) {
	r.HandleFunc("/me", h.Me).Methods(http.MethodGet)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	user, token, err := h.userService.RegisterUser(r.Context(), req.Handle, req.Email, req.Password, req.DisplayName)
	if errors.Is(err, ErrHandleTaken) {
		common.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		common.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	common.WriteJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}

	user, token, err := h.userService.LoginUser(r.Context(), req.Handle, req.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.log.Error("login_failed", zap.String("handle", req.Handle), zap.Error(err))
		}
		common.WriteError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}
	common.WriteJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := common.UserFromContext(r.Context())
	if !ok {
		common.WriteError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}

	user, err := h.userService.GetProfile(r.Context(), session.ID)
	if errors.Is(err, ErrUserNotFound) {
		common.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.log.Error("get_profile_failed", zap.String("user_id", session.ID), zap.Error(err))
		common.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	common.WriteJSON(w, http.StatusOK, user)
}
