package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"livetrack.fleetops.io/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connected stream consumer. Writes go through a mutex
// because frames and the initial snapshot can race.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *Client) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans tracker frames out to every connected stream client.
type Hub struct {
	logger     *slog.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With(slog.String("component", "stream_hub")),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("stream client connected", slog.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				_ = client.conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("stream client disconnected", slog.Int("total", total))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(message); err != nil {
					_ = client.conn.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// streamUpdate is the wire shape sent to stream clients.
type streamUpdate struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BroadcastUpdate sends a typed update to every connected client. The send
// is dropped if the hub's buffer is full; the next frame supersedes it.
func (h *Hub) BroadcastUpdate(updateType string, data interface{}) {
	jsonData, err := json.Marshal(streamUpdate{Type: updateType, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal stream update", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- jsonData:
	default:
	}
}

// broadcastFrame is the tracker frame listener feeding the hub.
func (api *RestAPI) broadcastFrame(markers []models.VehicleMarker) {
	api.hub.BroadcastUpdate("positions", markers)
}

// streamHandler upgrades the connection and streams marker frames. The
// current snapshot is sent immediately so the client can paint without
// waiting for the next movement.
func (api *RestAPI) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		api.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{conn: conn}
	api.hub.register <- client

	initData, err := json.Marshal(streamUpdate{Type: "init", Data: api.Tracker.Snapshot()})
	if err == nil {
		_ = client.WriteMessage(initData)
	}

	go func() {
		defer func() {
			api.hub.unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
