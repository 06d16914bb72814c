package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"nhooyr.io/websocket"
)

// Message is the envelope for every event pushed to clients.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client is one connected dashboard/audit consumer.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte
}

// Hub maintains connected clients and fans meeting lifecycle events out to
// them. Delivery is best-effort: a slow client is dropped, never waited on.
type Hub struct {
	clients        map[*Client]bool
	broadcast      chan []byte
	register       chan *Client
	unregister     chan *Client
	mu             sync.RWMutex
	jwtSecret      string
	allowedOrigins []string
}

// NewHub creates a new Hub
func NewHub(jwtSecret string, allowedOrigins []string) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan []byte, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		jwtSecret:      jwtSecret,
		allowedOrigins: allowedOrigins,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("Event stream client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Printf("Event stream client disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a typed payload to all connected clients.
func (h *Hub) Broadcast(msgType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := Message{
		Type:    msgType,
		Payload: payloadJSON,
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.broadcast <- msgJSON
	return nil
}

// HandleWebSocket upgrades an authenticated tutor connection to the event
// stream.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	tutorID := h.authenticate(w, r, token)
	if tutorID == 0 {
		return
	}

	allowedOrigins := h.allowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: allowedOrigins,
	})
	if err != nil {
		log.Printf("Event stream upgrade failed: %v", err)
		return
	}

	client := &Client{
		ID:   "tutor:" + strconv.Itoa(tutorID),
		Conn: conn,
		Hub:  h,
		Send: make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// authenticate validates the JWT and returns the tutor id, or writes the
// error response and returns 0.
func (h *Hub) authenticate(w http.ResponseWriter, r *http.Request, token string) int {
	if token == "" {
		log.Printf("Event stream rejected: no authentication from %s", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Method.Alg())
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !parsedToken.Valid {
		log.Printf("Event stream rejected: invalid token from %s", r.RemoteAddr)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0
	}

	if exp, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() > int64(exp) {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return 0
		}
	}

	tutorID, ok := claims["tutor_id"].(float64)
	if !ok || tutorID <= 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0
	}
	return int(tutorID)
}

// readPump drains client frames; the stream is one-way apart from pings.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		_, message, err := c.Conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure ||
				status == websocket.StatusGoingAway ||
				status == websocket.StatusNoStatusRcvd {
				break
			}
			log.Printf("Event stream unexpected error: %v", err)
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Failed to parse event stream message: %v", err)
			continue
		}

		if msg.Type == "ping" {
			response, _ := json.Marshal(Message{
				Type:    "pong",
				Payload: json.RawMessage(`{}`),
			})
			c.Send <- response
		}
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ctx := context.Background()
	for message := range c.Send {
		err := c.Conn.Write(ctx, websocket.MessageText, message)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != websocket.StatusNoStatusRcvd {
				log.Printf("Event stream unexpected write error: %v", err)
			}
			return
		}
	}
}
