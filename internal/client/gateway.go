// Package client talks to chat-svc: the REST gateway and the websocket feed
// the coordinator runs on in chat-cli.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ecoshare/internal/chat/coordinator"
	"ecoshare/internal/chat/handler"
	"ecoshare/internal/common"
	"ecoshare/internal/user"
)

const apiPrefix = "/api/v1"

var ErrUnauthorized = errors.New("not logged in or session expired")

// APIError is a non-2xx response from chat-svc.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chat-svc returned %d", e.Status)
	}
	return fmt.Sprintf("chat-svc returned %d: %s", e.Status, e.Message)
}

// Gateway is the REST side of chat-svc. It satisfies coordinator.Gateway.
type Gateway struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger

	mu    sync.RWMutex
	token string
}

func NewGateway(baseURL string, timeout time.Duration, log *zap.Logger) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (g *Gateway) SetToken(token string) {
	g.mu.Lock()
	g.token = token
	g.mu.Unlock()
}

func (g *Gateway) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// BaseURL is the server root without a trailing slash.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

func (g *Gateway) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	g.log.Debug("api_call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr common.ErrorResponse
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// Login exchanges credentials for a session and keeps its token.
func (g *Gateway) Login(ctx context.Context, handle, password string) (user.AuthResponse, error) {
	var resp user.AuthResponse
	err := g.do(ctx, http.MethodPost, "/auth/login", user.LoginRequest{Handle: handle, Password: password}, &resp)
	if err != nil {
		return user.AuthResponse{}, err
	}
	g.SetToken(resp.Token)
	return resp, nil
}

func (g *Gateway) Register(ctx context.Context, req user.RegisterRequest) (user.AuthResponse, error) {
	var resp user.AuthResponse
	if err := g.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return user.AuthResponse{}, err
	}
	g.SetToken(resp.Token)
	return resp, nil
}

// Me returns the identity behind the current token.
func (g *Gateway) Me(ctx context.Context) (common.AuthenticatedUser, error) {
	var me common.AuthenticatedUser
	if err := g.do(ctx, http.MethodGet, "/me", nil, &me); err != nil {
		return common.AuthenticatedUser{}, err
	}
	return me, nil
}

func (g *Gateway) ListConversations(ctx context.Context, _ common.AuthenticatedUser) ([]coordinator.Conversation, error) {
	var dtos []handler.ConversationDTO
	if err := g.do(ctx, http.MethodGet, "/conversations", nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]coordinator.Conversation, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, toConversation(dto))
	}
	return out, nil
}

// StartConversation opens (or finds) the one-to-one conversation with
// participantID.
func (g *Gateway) StartConversation(ctx context.Context, participantID string) (coordinator.Conversation, error) {
	var dto handler.ConversationDTO
	err := g.do(ctx, http.MethodPost, "/conversations", handler.StartConversationRequest{ParticipantID: participantID}, &dto)
	if err != nil {
		return coordinator.Conversation{}, err
	}
	return toConversation(dto), nil
}

func (g *Gateway) FetchMessages(ctx context.Context, conversationID string, _ common.AuthenticatedUser) ([]coordinator.Message, error) {
	var dtos []handler.MessageDTO
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := g.do(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, err
	}

	out := make([]coordinator.Message, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, toMessage(dto))
	}
	return out, nil
}

func (g *Gateway) SendMessage(ctx context.Context, conversationID, content string, _ common.AuthenticatedUser) error {
	var resp handler.SendMessageResponse
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := g.do(ctx, http.MethodPost, path, handler.SendMessageRequest{Content: content}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.New("message was not accepted")
	}
	return nil
}

func toConversation(dto handler.ConversationDTO) coordinator.Conversation {
	name := dto.Participant.DisplayName
	if name == "" {
		name = dto.Participant.Handle
	}
	return coordinator.Conversation{
		ID: dto.ID,
		Participant: coordinator.Participant{
			ID:          dto.Participant.ID,
			DisplayName: name,
			AvatarURL:   dto.Participant.AvatarURL,
		},
		Messages:      []coordinator.Message{},
		LastMessage:   dto.LastMessage,
		LastTimestamp: dto.LastTimestamp,
		UnreadCount:   int(dto.UnreadCount),
	}
}

func toMessage(dto handler.MessageDTO) coordinator.Message {
	return coordinator.Message{
		ID:        dto.ID,
		SenderID:  dto.SenderID,
		Content:   dto.Content,
		Timestamp: common.FormatDisplayTime(dto.SentAt),
		SentAt:    dto.SentAt,
		Status:    common.ParseMessageStatus(dto.Status),
	}
}
