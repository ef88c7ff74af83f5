package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/repository"
)

const (
	DefaultTTL  = time.Hour
	DefaultRole = "guest"
)

type RegistryServiceInterface interface {
	Connect(ctx context.Context, req domain.ConnectRequest) (*domain.Connection, error)
	// Ping extends the connection's expiry by the registry TTL.
	Ping(ctx context.Context, connectionID string) (*domain.Connection, error)
	Disconnect(ctx context.Context, connectionID string) error
	ListActive(ctx context.Context, tenantID string) ([]domain.Connection, error)
	Remove(ctx context.Context, tenantID, connectionID string) error
	Reap(ctx context.Context) (int, error)
}

type RegistryService struct {
	conns repository.ConnectionRepositoryInterface
	log   *logger.Logger
	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

func NewRegistryService(conns repository.ConnectionRepositoryInterface, lg *logger.Logger, ttl time.Duration) *RegistryService {
	if lg == nil {
		lg = logger.Nop()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RegistryService{
		conns: conns,
		log:   lg,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (s *RegistryService) Connect(ctx context.Context, req domain.ConnectRequest) (*domain.Connection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = DefaultRole
	}
	now := s.now()
	c := &domain.Connection{
		TenantID:     strings.TrimSpace(req.TenantID),
		ConnectionID: s.newID(),
		Role:         role,
		UserID:       strings.TrimSpace(req.UserID),
		ConnectedAt:  now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.conns.PutConnection(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("connection_registered", map[string]any{
		"tenant_id": c.TenantID, "connection_id": c.ConnectionID, "role": c.Role,
	})
	return c, nil
}

func (s *RegistryService) Ping(ctx context.Context, connectionID string) (*domain.Connection, error) {
	return s.conns.TouchConnection(ctx, connectionID, s.now().Add(s.ttl))
}

func (s *RegistryService) Disconnect(ctx context.Context, connectionID string) error {
	c, err := s.conns.FindConnection(ctx, connectionID)
	if err != nil {
		return err
	}
	if err := s.conns.DeleteConnection(ctx, c.TenantID, connectionID); err != nil {
		return err
	}
	s.log.Info("connection_removed", map[string]any{"tenant_id": c.TenantID, "connection_id": connectionID})
	return nil
}

// ListActive returns every registered connection of the tenant; expiry is
// enforced by Reap only.
func (s *RegistryService) ListActive(ctx context.Context, tenantID string) ([]domain.Connection, error) {
	return s.conns.ListConnections(ctx, tenantID)
}

func (s *RegistryService) Remove(ctx context.Context, tenantID, connectionID string) error {
	return s.conns.DeleteConnection(ctx, tenantID, connectionID)
}

func (s *RegistryService) Reap(ctx context.Context) (int, error) {
	n, err := s.conns.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("connections_reaped", map[string]any{"count": n})
	}
	return n, nil
}

// RunReaper calls Reap every interval until ctx is done.
func (s *RegistryService) RunReaper(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := s.Reap(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("reaper_failed", err, nil)
			}
		}
	}
}
