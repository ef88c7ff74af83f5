package service

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
)

// liveConn is one upgraded socket owned by this process. Writes are
// serialized; once closed it reports every push as gone.
type liveConn struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func (c *liveConn) write(op ws.OpCode, payload []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return wsutil.WriteServerMessage(c.conn, op, payload)
}

func (c *liveConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		_ = c.conn.Close()
	}
}

// Hub is the push transport for connections upgraded by this gateway
// process. A connection registered in the store but not held here is
// reported as NotHeld and left in the registry; only a failed write on a
// local socket reports Gone.
type Hub struct {
	registry RegistryServiceInterface
	log      *logger.Logger

	mu    sync.RWMutex
	conns map[string]*liveConn

	WriteTimeout time.Duration
}

func NewHub(registry RegistryServiceInterface, lg *logger.Logger) *Hub {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Hub{
		registry:     registry,
		log:          lg,
		conns:        make(map[string]*liveConn),
		WriteTimeout: 5 * time.Second,
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) Push(_ context.Context, c domain.Connection, payload []byte) domain.DeliveryResult {
	h.mu.RLock()
	lc, ok := h.conns[c.ConnectionID]
	h.mu.RUnlock()
	if !ok {
		return domain.DeliveryResult{Status: domain.NotHeld}
	}

	err := lc.write(ws.OpText, payload, h.WriteTimeout)
	if err == nil {
		return domain.DeliveryResult{Status: domain.Delivered}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.DeliveryResult{Status: domain.DeliveryFailed, Err: err}
	}
	h.drop(c.ConnectionID)
	return domain.DeliveryResult{Status: domain.Gone}
}

type welcome struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
	TenantID     string `json:"tenantId"`
	ExpiresAt    string `json:"expiresAt"`
}

// ServeWS registers a connection from the query {tenantId, role?, userId?},
// upgrades the request and serves it until the peer goes away. A text frame
// "ping" refreshes the registration TTL.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenantID := q.Get("tenantId")
	if tenantID == "" {
		tenantID = r.Header.Get("X-Tenant-Id")
	}
	req := domain.ConnectRequest{TenantID: tenantID, Role: q.Get("role"), UserID: q.Get("userId")}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.Error("ws_upgrade_failed", err, nil)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	reg, err := h.registry.Connect(ctx, req)
	if err != nil {
		h.log.Error("ws_register_failed", err, map[string]any{"tenant_id": tenantID})
		_ = conn.Close()
		return
	}

	lc := &liveConn{conn: conn}
	h.mu.Lock()
	h.conns[reg.ConnectionID] = lc
	h.mu.Unlock()

	hello, _ := json.Marshal(welcome{
		Type: "connected", ConnectionID: reg.ConnectionID, TenantID: reg.TenantID,
		ExpiresAt: reg.ExpiresAt.Format(time.RFC3339),
	})
	if err := lc.write(ws.OpText, hello, h.WriteTimeout); err != nil {
		h.disconnect(ctx, reg.ConnectionID)
		return
	}

	go h.readLoop(ctx, reg.ConnectionID, lc)
}

func (h *Hub) readLoop(ctx context.Context, connectionID string, lc *liveConn) {
	defer h.disconnect(ctx, connectionID)
	for {
		data, op, err := wsutil.ReadClientData(lc.conn)
		if err != nil {
			return
		}
		if op != ws.OpText || !strings.EqualFold(strings.TrimSpace(string(data)), "ping") {
			continue
		}
		if _, err := h.registry.Ping(ctx, connectionID); err != nil {
			h.log.Error("ws_ping_failed", err, map[string]any{"connection_id": connectionID})
			if errors.Is(err, domain.ErrConnectionNotFound) {
				return
			}
			continue
		}
		if err := lc.write(ws.OpText, []byte(`{"type":"pong"}`), h.WriteTimeout); err != nil {
			return
		}
	}
}

func (h *Hub) drop(connectionID string) {
	h.mu.Lock()
	lc, ok := h.conns[connectionID]
	delete(h.conns, connectionID)
	h.mu.Unlock()
	if ok {
		lc.close()
	}
}

func (h *Hub) disconnect(ctx context.Context, connectionID string) {
	h.drop(connectionID)
	if err := h.registry.Disconnect(ctx, connectionID); err != nil && !errors.Is(err, domain.ErrConnectionNotFound) {
		h.log.Error("ws_disconnect_failed", err, map[string]any{"connection_id": connectionID})
	}
}

// CloseAll drops every live socket; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*liveConn)
	h.mu.Unlock()
	for _, lc := range conns {
		lc.close()
	}
}
