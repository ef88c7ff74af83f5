// Package bootstrap opens the backends a process is configured for and hands
// out the adapters built on them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.temporal.io/sdk/client"

	"restaurant-system/internal/callback"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/httpx"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/connections/database"
	"restaurant-system/internal/connections/kafka"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/connections/temporal"
	"restaurant-system/internal/domain"
	"restaurant-system/internal/microservices/fulfillment"
	notificator "restaurant-system/internal/microservices/notificator/service"
	"restaurant-system/internal/repository"
	"restaurant-system/internal/repository/memory"
	"restaurant-system/internal/repository/postgres"
)

const dialTimeout = 30 * time.Second

// Deps is the set of open backends. Fields for backends the runtime does not
// select stay nil.
type Deps struct {
	Config   config.App
	Repo     repository.Repository
	Rabbit   *rabbitmq.Client
	Kafka    *kgo.Client
	Temporal client.Client

	checks map[string]func(context.Context) error
	log    *logger.Logger
}

type Need struct {
	Store    bool
	Rabbit   bool
	Kafka    bool
	Temporal bool
}

// NeedsFor derives the backends a runtime selection requires.
func NeedsFor(rt config.Runtime) Need {
	return Need{
		Store:    true,
		Rabbit:   rt.Sink == config.SinkRabbitMQ || rt.Sink == config.SinkBoth || rt.Callback == config.CallbackTemporal,
		Kafka:    rt.Sink == config.SinkKafka || rt.Sink == config.SinkBoth,
		Temporal: rt.Callback == config.CallbackTemporal,
	}
}

// Open connects to every backend in need. On error everything opened so far
// is closed again.
func Open(ctx context.Context, cfg config.App, need Need, lg *logger.Logger) (_ *Deps, err error) {
	if lg == nil {
		lg = logger.Nop()
	}
	d := &Deps{Config: cfg, checks: map[string]func(context.Context) error{}, log: lg}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if need.Store {
		if err := d.openStore(ctx); err != nil {
			return nil, err
		}
	}
	if need.Rabbit {
		c, err := rabbitmq.DialContext(ctx, cfg.RabbitMQ, dialTimeout)
		if err != nil {
			return nil, err
		}
		d.Rabbit = c
		d.checks["rabbitmq"] = func(context.Context) error { return c.Ping() }
		lg.Info("rabbitmq_connected", map[string]any{"host": cfg.RabbitMQ.Host})
	}
	if need.Kafka {
		c, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			return nil, err
		}
		d.Kafka = c
		d.checks["kafka"] = c.Ping
		lg.Info("kafka_connected", map[string]any{"brokers": cfg.Kafka.Brokers, "topic": cfg.Kafka.Topic})
	}
	if need.Temporal {
		c, err := temporal.Dial(ctx, cfg.Temporal)
		if err != nil {
			return nil, err
		}
		d.Temporal = c
		d.checks["temporal"] = func(ctx context.Context) error {
			_, err := c.CheckHealth(ctx, &client.CheckHealthRequest{})
			return err
		}
		lg.Info("temporal_connected", map[string]any{"host_port": cfg.Temporal.HostPort, "namespace": cfg.Temporal.Namespace})
	}
	return d, nil
}

func (d *Deps) openStore(ctx context.Context) error {
	switch d.Config.Runtime.Store {
	case config.StoreMemory:
		d.Repo = memory.New().Repository()
		d.log.Info("store_selected", map[string]any{"store": config.StoreMemory})
		return nil
	case config.StorePostgres:
		pool, err := database.New(ctx, d.Config.Database)
		if err != nil {
			return err
		}
		store := postgres.NewFromPool(pool, d.log)
		d.Repo = store.Repository()
		d.checks["postgres"] = func(ctx context.Context) error { return database.Ping(ctx, pool) }
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		d.log.Info("db_connected", map[string]any{"host": d.Config.Database.Host, "database": d.Config.Database.Database})
		return nil
	default:
		return fmt.Errorf("unknown store %q", d.Config.Runtime.Store)
	}
}

// DeclareTopology declares the stage queues and the notification exchange
// when RabbitMQ is in use.
func (d *Deps) DeclareTopology() error {
	if d.Rabbit == nil {
		return nil
	}
	stages := make([]string, 0, len(domain.Stages))
	for _, st := range domain.Stages {
		stages = append(stages, string(st))
	}
	return d.Rabbit.DeclareTopology(stages)
}

// Sink builds the external notification sink the runtime selects.
func (d *Deps) Sink() notificator.Sink {
	var sinks notificator.MultiSink
	if d.Rabbit != nil && d.Config.Runtime.Sink != config.SinkKafka && d.Config.Runtime.Sink != config.SinkNone {
		sinks = append(sinks, notificator.NewRabbitSink(d.Rabbit))
	}
	if d.Kafka != nil {
		sinks = append(sinks, notificator.NewKafkaSink(d.Kafka, d.Config.Kafka.Topic))
	}
	switch len(sinks) {
	case 0:
		return notificator.NewLogSink(d.log)
	case 1:
		return sinks[0]
	default:
		return sinks
	}
}

// Callback builds the adapter that signals the execution engine.
func (d *Deps) Callback() callback.AdapterInterface {
	var engine callback.Engine = callback.NewLogEngine(d.log)
	if d.Temporal != nil {
		engine = callback.NewTemporalEngine(d.Temporal)
	}
	return callback.NewAdapter(engine, d.log)
}

// WorkflowStarter launches fulfillment for a placed order.
type WorkflowStarter interface {
	Start(ctx context.Context, tenantID, orderID string) error
}

// Starter returns the workflow starter, or nil without an execution engine.
func (d *Deps) Starter() WorkflowStarter {
	if d.Temporal == nil {
		return nil
	}
	return fulfillment.NewStarter(d.Temporal, d.Config.Temporal.TaskQueue, d.log)
}

// Health runs every backend check and reports each by name.
func (d *Deps) Health(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := make(map[string]string, len(d.checks))
	var errs []error
	for name, check := range d.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out[name] = "ok"
	}
	return out, errors.Join(errs...)
}

// HealthHandler answers 200 when every backend is reachable and 503 otherwise.
func (d *Deps) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks, err := d.Health(r.Context())
	code, status := http.StatusOK, "ok"
	if err != nil {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	httpx.WriteJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (d *Deps) Close() {
	if d.Temporal != nil {
		d.Temporal.Close()
	}
	if d.Kafka != nil {
		d.Kafka.Close()
	}
	if d.Rabbit != nil {
		d.Rabbit.Close()
	}
	if d.Repo.Close != nil {
		d.Repo.Close()
	}
}
