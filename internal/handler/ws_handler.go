package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"paperlib-sync-server/internal/domain"
	"paperlib-sync-server/internal/service"
	"paperlib-sync-server/internal/websocket"
	"paperlib-sync-server/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
	log       logrus.FieldLogger
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, readBufferSize, writeBufferSize int, log logrus.FieldLogger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBufferSize,
			WriteBufferSize: writeBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	if token == "" {
		h.log.Warn("websocket connection without token")
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.ValidateToken(token, h.jwtSecret)
	if err != nil {
		h.log.WithError(err).Warn("websocket token validation failed")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	userID := claims.UserID

	clientTag := r.URL.Query().Get("clientId")
	if clientTag == "" {
		clientTag = r.Header.Get(ClientIDHeader)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, clientTag, conn, h.manager)

	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// WebSocketMessageHandler answers pings and runs sync requests sent over
// an open connection.
type WebSocketMessageHandler struct {
	syncService *service.SyncService
	log         logrus.FieldLogger
}

func NewWebSocketMessageHandler(syncService *service.SyncService, log logrus.FieldLogger) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		syncService: syncService,
		log:         log,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypeSyncRequest:
		return h.handleSyncRequest(client, msg)

	case websocket.TypePing:
		return send(client, websocket.TypePong, nil)

	default:
		h.log.WithField("type", msg.Type).Debug("ignoring unknown websocket message")
	}

	return nil
}

func (h *WebSocketMessageHandler) handleSyncRequest(client *websocket.Client, msg *websocket.Message) error {
	var req domain.SyncRequest
	if err := msg.UnmarshalPayload(&req); err != nil {
		return send(client, websocket.TypeError, &websocket.ErrorPayload{Error: "invalid sync request"})
	}
	if req.ClientID == "" {
		req.ClientID = client.ClientID
	}

	res, err := h.syncService.Sync(context.Background(), client.UserID, &req)
	if err != nil {
		return send(client, websocket.TypeError, &websocket.ErrorPayload{Error: err.Error()})
	}

	return send(client, websocket.TypeSyncResponse, res)
}

func send(client *websocket.Client, msgType websocket.MessageType, payload interface{}) error {
	msg, err := websocket.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	client.Send <- data
	return nil
}
