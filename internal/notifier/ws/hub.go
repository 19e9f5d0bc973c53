package ws

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conn is the slice of a websocket connection the hub needs. Tests substitute
// an in-memory fake.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type connMeta struct {
	userID      string
	connectedAt time.Time
}

// Hub fans notification frames out to the live connections of a user. Writes
// are best effort: a failed write only skips that connection, the durable
// record lives in the notifications table.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]map[Conn]struct{}
	meta   map[Conn]connMeta
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]map[Conn]struct{}),
		meta:   make(map[Conn]connMeta),
		logger: logger,
	}
}

// Register adds the connection to the user's set and returns the Conn all
// further writes must go through, so that hub pushes and the owning
// goroutine's writes never hit the socket at the same time.
func (h *Hub) Register(userID string, conn Conn) Conn {
	locked := &lockedConn{conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		h.conns[userID] = set
	}

	set[locked] = struct{}{}
	h.meta[locked] = connMeta{userID: userID, connectedAt: time.Now()}

	h.logger.Info("websocket registered",
		zap.String("user_id", userID),
		zap.Int("user_connections", len(set)),
	)

	return locked
}

func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	meta, ok := h.meta[conn]
	if !ok {
		return
	}

	delete(h.meta, conn)

	set := h.conns[meta.userID]
	delete(set, conn)
	if len(set) == 0 {
		delete(h.conns, meta.userID)
	}

	h.logger.Info("websocket unregistered",
		zap.String("user_id", meta.userID),
	)
}

// Push writes frame to every open connection of the user and reports how
// many writes succeeded.
func (h *Hub) Push(userID string, frame interface{}) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns[userID]))
	for conn := range h.conns[userID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.WriteJSON(frame); err != nil {
			h.logger.Warn("websocket push failed, skipping connection",
				zap.String("user_id", userID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	return delivered
}

type Stats struct {
	Users       int `json:"users"`
	Connections int `json:"connections"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{
		Users:       len(h.conns),
		Connections: len(h.meta),
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.meta {
		_ = conn.Close()
	}

	h.conns = make(map[string]map[Conn]struct{})
	h.meta = make(map[Conn]connMeta)
}
