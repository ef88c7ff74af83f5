package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository/memory"
)

func newRegistry(t *testing.T, now *time.Time) *RegistryService {
	t.Helper()
	r := NewRegistryService(memory.New(), nil, time.Hour)
	r.now = func() time.Time { return *now }
	return r
}

func TestRegistry_ConnectDefaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newRegistry(t, &now)

	c, err := r.Connect(context.Background(), domain.ConnectRequest{TenantID: "t1"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.Role != DefaultRole || c.ConnectionID == "" || !c.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected connection %+v", c)
	}

	if _, err := r.Connect(context.Background(), domain.ConnectRequest{Role: "admin"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without tenant, got %v", err)
	}
}

func TestRegistry_PingExtendsTTL(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newRegistry(t, &now)
	ctx := context.Background()

	c, _ := r.Connect(ctx, domain.ConnectRequest{TenantID: "t1", Role: "kitchen", UserID: "u1"})
	now = now.Add(30 * time.Minute)

	got, err := r.Ping(ctx, c.ConnectionID)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if !got.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), got.ExpiresAt)
	}

	if _, err := r.Ping(ctx, "unknown"); !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound, got %v", err)
	}
}

func TestRegistry_DisconnectAndReap(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := newRegistry(t, &now)
	ctx := context.Background()

	a, _ := r.Connect(ctx, domain.ConnectRequest{TenantID: "t1"})
	b, _ := r.Connect(ctx, domain.ConnectRequest{TenantID: "t1"})

	if err := r.Disconnect(ctx, a.ConnectionID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := r.Disconnect(ctx, a.ConnectionID); !errors.Is(err, domain.ErrConnectionNotFound) {
		t.Fatalf("expected ErrConnectionNotFound on second disconnect, got %v", err)
	}

	active, _ := r.ListActive(ctx, "t1")
	if len(active) != 1 || active[0].ConnectionID != b.ConnectionID {
		t.Fatalf("unexpected active connections %+v", active)
	}

	now = now.Add(2 * time.Hour)
	n, err := r.Reap(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 reaped, got %d (%v)", n, err)
	}
	active, _ = r.ListActive(ctx, "t1")
	if len(active) != 0 {
		t.Fatalf("expected no active connections, got %+v", active)
	}
}
