// Package sse provides Server-Sent Events support for real-time notifications.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventType represents different types of SSE events
type EventType string

const (
	EventNotification EventType = "notification"
	EventUnreadCount  EventType = "unread_count"
	EventLifecycle    EventType = "lifecycle"
)

const clientBuffer = 32

// Event represents an SSE event payload
type Event struct {
	Type    EventType   `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// client represents a connected SSE client
type client struct {
	userID uuid.UUID
	events chan Event
}

// Service manages SSE connections per user.
type Service struct {
	mu      sync.RWMutex
	clients map[uuid.UUID][]*client // userID -> clients
	log     *logger.Logger
}

// New creates a new SSE service
func New(log *logger.Logger) *Service {
	return &Service{
		clients: make(map[uuid.UUID][]*client),
		log:     log,
	}
}

func (s *Service) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.userID] = append(s.clients[c.userID], c)
}

// removeClient unregisters a client. The channel is closed only if the client
// was still registered, so Close and a disconnect never both close it.
func (s *Service) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := s.clients[c.userID]
	for i, cl := range clients {
		if cl == c {
			s.clients[c.userID] = append(clients[:i:i], clients[i+1:]...)
			if len(s.clients[c.userID]) == 0 {
				delete(s.clients, c.userID)
			}
			close(c.events)
			return
		}
	}
}

// Publish sends an event to every open connection of a user and returns how
// many connections accepted it. Full buffers drop the event.
func (s *Service) Publish(userID uuid.UUID, event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sent := 0
	for _, c := range s.clients[userID] {
		select {
		case c.events <- event:
			sent++
		default:
			s.log.Warn("sse buffer full", "userId", userID, "type", event.Type)
		}
	}
	return sent
}

// Connections returns the number of open connections for a user.
func (s *Service) Connections(userID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

// Handler returns a Gin handler for SSE connections
func (s *Service) Handler(getUserID func(*gin.Context) (uuid.UUID, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		cl := &client{
			userID: userID,
			events: make(chan Event, clientBuffer),
		}
		s.addClient(cl)
		defer s.removeClient(cl)

		c.SSEvent("connected", gin.H{"userId": userID})
		c.Writer.Flush()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case event, ok := <-cl.events:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				c.SSEvent(string(event.Type), string(data))
				c.Writer.Flush()
			}
		}
	}
}

// Close disconnects every client.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clients := range s.clients {
		for _, c := range clients {
			close(c.events)
		}
	}
	s.clients = make(map[uuid.UUID][]*client)
}
