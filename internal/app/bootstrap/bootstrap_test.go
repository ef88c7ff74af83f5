package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"restaurant-system/internal/common/config"
	notificator "restaurant-system/internal/microservices/notificator/service"
)

func TestNeedsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rt   config.Runtime
		want Need
	}{
		{name: "local", rt: config.Runtime{Store: config.StoreMemory, Sink: config.SinkNone, Callback: config.CallbackLog},
			want: Need{Store: true}},
		{name: "kafka_only", rt: config.Runtime{Sink: config.SinkKafka, Callback: config.CallbackLog},
			want: Need{Store: true, Kafka: true}},
		{name: "temporal_needs_queues", rt: config.Runtime{Sink: config.SinkNone, Callback: config.CallbackTemporal},
			want: Need{Store: true, Rabbit: true, Temporal: true}},
		{name: "both_sinks", rt: config.Runtime{Sink: config.SinkBoth, Callback: config.CallbackLog},
			want: Need{Store: true, Rabbit: true, Kafka: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NeedsFor(tt.rt); got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestOpen_Memory(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Runtime = config.Runtime{Store: config.StoreMemory, Sink: config.SinkNone, Callback: config.CallbackLog}
	d, err := Open(context.Background(), cfg, NeedsFor(cfg.Runtime), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer d.Close()

	if d.Repo.Orders == nil || d.Repo.Products == nil || d.Repo.Connections == nil {
		t.Fatalf("repository not wired: %+v", d.Repo)
	}
	if _, ok := d.Sink().(*notificator.LogSink); !ok {
		t.Fatalf("expected log sink, got %T", d.Sink())
	}
	if d.Starter() != nil {
		t.Fatal("no starter without an execution engine")
	}
	if err := d.DeclareTopology(); err != nil {
		t.Fatalf("topology without rabbitmq: %v", err)
	}

	rec := httptest.NewRecorder()
	d.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOpen_UnknownStore(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Runtime.Store = "sqlite"
	if _, err := Open(context.Background(), cfg, Need{Store: true}, nil); err == nil {
		t.Fatal("expected error for unknown store")
	}
}
