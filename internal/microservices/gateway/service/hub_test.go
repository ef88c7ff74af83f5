package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository/memory"
)

func dialHub(t *testing.T, srv *httptest.Server, query string) (net.Conn, welcome) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := wsutil.ReadServerText(conn)
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var w welcome
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	return conn, w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_PushAndGone(t *testing.T) {
	t.Parallel()

	store := memory.New()
	reg := NewRegistryService(store, nil, time.Hour)
	hub := NewHub(reg, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.CloseAll()

	conn, hello := dialHub(t, srv, "tenantId=t1&role=kitchen")
	if hello.Type != "connected" || hello.TenantID != "t1" || hello.ConnectionID == "" {
		t.Fatalf("unexpected welcome %+v", hello)
	}
	waitFor(t, func() bool { return hub.Count() == 1 })

	c, err := store.FindConnection(context.Background(), hello.ConnectionID)
	if err != nil || c.Role != "kitchen" {
		t.Fatalf("connection not registered: %+v %v", c, err)
	}

	res := hub.Push(context.Background(), *c, []byte(`{"type":"order.created"}`))
	if res.Status != domain.Delivered {
		t.Fatalf("expected delivered, got %v (%v)", res.Status, res.Err)
	}
	data, err := wsutil.ReadServerText(conn)
	if err != nil || string(data) != `{"type":"order.created"}` {
		t.Fatalf("unexpected frame %q (%v)", data, err)
	}

	if err := wsutil.WriteClientText(conn, []byte("ping")); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	data, err = wsutil.ReadServerText(conn)
	if err != nil || !strings.Contains(string(data), "pong") {
		t.Fatalf("expected pong, got %q (%v)", data, err)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })
	waitFor(t, func() bool {
		_, err := store.FindConnection(context.Background(), hello.ConnectionID)
		return err != nil
	})
}

func TestHub_FailedLocalWriteIsGone(t *testing.T) {
	t.Parallel()

	hub := NewHub(NewRegistryService(memory.New(), nil, time.Hour), nil)
	server, client := net.Pipe()
	_ = client.Close()
	hub.mu.Lock()
	hub.conns["c1"] = &liveConn{conn: server}
	hub.mu.Unlock()

	res := hub.Push(context.Background(), domain.Connection{TenantID: "t1", ConnectionID: "c1"}, []byte(`{}`))
	if res.Status != domain.Gone {
		t.Fatalf("expected gone, got %v (%v)", res.Status, res.Err)
	}
	if hub.Count() != 0 {
		t.Fatalf("dead socket still held")
	}
}

func TestHub_ConnectionHeldElsewhereIsNotGone(t *testing.T) {
	t.Parallel()

	hub := NewHub(NewRegistryService(memory.New(), nil, time.Hour), nil)
	res := hub.Push(context.Background(), domain.Connection{TenantID: "t1", ConnectionID: "elsewhere"}, []byte(`{}`))
	if res.Status != domain.NotHeld {
		t.Fatalf("expected not held, got %v", res.Status)
	}
}

func TestHub_RejectsMissingTenant(t *testing.T) {
	t.Parallel()

	hub := NewHub(NewRegistryService(memory.New(), nil, time.Hour), nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws"); err == nil {
		t.Fatal("expected handshake to fail without tenantId")
	}
}
