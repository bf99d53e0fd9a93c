// internal/websocket/hub.go
package websocket

import (
	"context"
	"sync"

	"adminauth-service/internal/domain/auth"
	wstypes "adminauth-service/internal/domain/websocket"

	"go.uber.org/zap"
)

// TokenValidator resolves an access token to the caller's identity.
type TokenValidator interface {
	Validate(token string) (*auth.Identity, error)
}

// Hub fans audit events out to connected admin clients.
type Hub struct {
	// Registered clients by user ID
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	// Registration/unregistration
	Register   chan *Client
	unregister chan *Client

	// Broadcasting
	broadcast chan *BroadcastMessage

	validator TokenValidator
	logger    *zap.Logger
	done      chan struct{}
}

type BroadcastMessage struct {
	UserIDs []int64
	Channel wstypes.ChannelType
	Message *wstypes.WSMessage
}

func NewHub(validator TokenValidator, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		validator:  validator,
		logger:     logger.Named("ws"),
		done:       make(chan struct{}),
	}
}

// AuthenticateClient validates the access token of a connecting client.
func (h *Hub) AuthenticateClient(token string) (*auth.Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	identity, err := h.validator.Validate(token)
	if err != nil || !identity.IsAuthenticated() {
		return nil, ErrInvalidToken
	}
	return identity, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.BroadcastMessage(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true
	total := h.totalClients()
	h.mu.Unlock()

	h.logger.Info("client connected",
		zap.Int64("user_id", client.userID),
		zap.Int("total", total),
	)

	client.SendMessage(wstypes.NewMessage(wstypes.EventTypeConnected, map[string]any{
		"user_id":     client.userID,
		"permissions": client.identity.Permissions.Strings(),
		"channels":    client.Subscriptions(),
	}))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}

			h.logger.Info("client disconnected",
				zap.Int64("user_id", client.userID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) BroadcastMessage(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.UserIDs == nil {
		// Broadcast to all
		for _, clients := range h.clients {
			for client := range clients {
				if client.IsSubscribed(msg.Channel) {
					client.SendMessage(msg.Message)
				}
			}
		}
		return
	}

	for _, userID := range msg.UserIDs {
		for client := range h.clients[userID] {
			if client.IsSubscribed(msg.Channel) {
				client.SendMessage(msg.Message)
			}
		}
	}
}

// BroadcastAuditEvent queues ev for every client on the audit channel. It
// never blocks; a full queue drops the event.
func (h *Hub) BroadcastAuditEvent(ev auth.Event) error {
	msg := &BroadcastMessage{
		Channel: wstypes.ChannelAudit,
		Message: wstypes.NewMessage(wstypes.EventTypeAuditLog, ev),
	}
	select {
	case <-h.done:
		return ErrHubClosed
	case h.broadcast <- msg:
		return nil
	default:
		return ErrBroadcastQueueFull
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	close(h.done)
	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
