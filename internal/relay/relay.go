package relay

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/chatstream/internal/message"
)

// Relay routes chat frames between connected clients.
type Relay struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*client

	received      atomic.Int64
	relayed       atomic.Int64
	parseErrors   atomic.Int64
	undeliverable atomic.Int64
}

// New creates a relay.
func New(cfg Config, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = defaults.SendQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	return &Relay{
		cfg:    cfg,
		logger: logger.With("component", "relay"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*client),
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	user := req.URL.Query().Get("id")
	if user == "" {
		http.Error(w, ErrMissingID.Error(), http.StatusBadRequest)
		return
	}

	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.New(), user, ws, r)
	r.register(c)
	go c.writePump()
	c.readPump()
}

// Users returns the connected user ids, sorted and deduplicated.
func (r *Relay) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usersLocked()
}

// Stats returns current statistics.
func (r *Relay) Stats() Stats {
	r.mu.RLock()
	clients := len(r.clients)
	users := len(r.usersLocked())
	r.mu.RUnlock()

	return Stats{
		Clients:        clients,
		Users:          users,
		FramesReceived: r.received.Load(),
		FramesRelayed:  r.relayed.Load(),
		ParseErrors:    r.parseErrors.Load(),
		Undeliverable:  r.undeliverable.Load(),
	}
}

// Close disconnects every client.
func (r *Relay) Close() {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.ws.Close()
	}
}

func (r *Relay) usersLocked() []string {
	users := make([]string, 0, len(r.clients))
	for _, c := range r.clients {
		users = append(users, c.user)
	}
	slices.Sort(users)
	return slices.Compact(users)
}

func (r *Relay) register(c *client) {
	r.mu.Lock()
	r.clients[c.id] = c
	count := len(r.clients)
	r.mu.Unlock()

	r.logger.Info("client connected", "user", c.user, "client_id", c.id, "clients", count)
	r.broadcastRoster()
}

func (r *Relay) unregister(c *client) {
	r.mu.Lock()
	if _, ok := r.clients[c.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, c.id)
	count := len(r.clients)
	r.mu.Unlock()

	c.closeSend()
	r.logger.Info("client disconnected", "user", c.user, "client_id", c.id, "clients", count)
	r.broadcastRoster()
}

func (r *Relay) broadcastRoster() {
	frame, err := message.EncodeRoster(r.Users())
	if err != nil {
		r.logger.Error("encode roster", "error", err)
		return
	}
	r.fanOut(frame, func(*client) bool { return true })
}

// route handles one frame from c.
func (r *Relay) route(from *client, data []byte) {
	r.received.Add(1)

	out, err := message.ParseOutbound(data)
	if err != nil {
		r.parseErrors.Add(1)
		r.logger.Warn("dropping malformed frame", "user", from.user, "error", err)
		return
	}

	frame, err := message.EncodeBroadcast(out.Msg)
	if err != nil {
		r.logger.Error("encode broadcast", "error", err)
		return
	}

	switch out.Type {
	case message.SendSingle:
		if !r.Online(out.To) {
			r.undeliverable.Add(1)
			r.logger.Debug("single message to offline user", "from", from.user, "to", out.To, "error", ErrNoSuchUser)
		}
		n := r.fanOut(frame, func(c *client) bool {
			// The author always gets a copy of a direct message.
			return c.user == out.To || c.id == from.id
		})
		r.logger.Debug("relayed single", "from", from.user, "to", out.To, "recipients", n)

	default:
		n := r.fanOut(frame, func(c *client) bool {
			return r.cfg.EchoToSender || c.id != from.id
		})
		r.logger.Debug("relayed broadcast", "from", from.user, "recipients", n)
	}
}

// Online reports whether any client is connected as user.
func (r *Relay) Online(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.user == user {
			return true
		}
	}
	return false
}

// fanOut queues frame on every client accepted by want and returns how many
// were queued. Clients whose queue is full are disconnected.
func (r *Relay) fanOut(frame []byte, want func(*client) bool) int {
	r.mu.RLock()
	targets := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		if want(c) {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if err := c.send(frame); err != nil {
			r.logger.Warn("dropping slow client", "user", c.user, "client_id", c.id, "error", err)
			go r.unregister(c)
			continue
		}
		n++
	}
	r.relayed.Add(int64(n))
	return n
}
