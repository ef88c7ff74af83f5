package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"restaurant-system/internal/common/tracing"
	"restaurant-system/internal/connections/database"
	"restaurant-system/internal/connections/kafka"
	"restaurant-system/internal/connections/rabbitmq"
	"restaurant-system/internal/connections/temporal"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SinkRabbitMQ = "rabbitmq"
	SinkKafka    = "kafka"
	SinkBoth     = "both"
	SinkNone     = "none"

	CallbackTemporal = "temporal"
	CallbackLog      = "log"
)

type WebSocket struct {
	ConnectionTTLSeconds  int `yaml:"connection_ttl_seconds"`
	ReaperIntervalSeconds int `yaml:"reaper_interval_seconds"`
	PushConcurrency       int `yaml:"push_concurrency"`
}

func (w WebSocket) TTL() time.Duration {
	return time.Duration(w.ConnectionTTLSeconds) * time.Second
}

func (w WebSocket) ReaperInterval() time.Duration {
	return time.Duration(w.ReaperIntervalSeconds) * time.Second
}

type HTTP struct {
	Port          int `yaml:"port"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

type Worker struct {
	Name           string `yaml:"name"`
	Prefetch       int    `yaml:"prefetch"`
	AutoComplete   bool   `yaml:"auto_complete"`
	StrictOrdering bool   `yaml:"strict_ordering"`
}

// Runtime selects the backends of a process.
type Runtime struct {
	Store    string `yaml:"store"`
	Sink     string `yaml:"sink"`
	Callback string `yaml:"callback"`
}

type App struct {
	Database  database.Config `yaml:"database"`
	RabbitMQ  rabbitmq.Config `yaml:"rabbitmq"`
	Kafka     kafka.Config    `yaml:"kafka"`
	Temporal  temporal.Config `yaml:"temporal"`
	WebSocket WebSocket       `yaml:"websocket"`
	HTTP      HTTP            `yaml:"http"`
	Worker    Worker          `yaml:"worker"`
	Tracing   tracing.Config  `yaml:"tracing"`
	Runtime   Runtime         `yaml:"runtime"`
}

func Defaults() App {
	return App{
		Database: database.Config{Port: 5432, SSLMode: "disable", MaxConns: 10},
		RabbitMQ: rabbitmq.Config{Port: 5672, VHost: "/"},
		Kafka:    kafka.Config{Topic: "order-notifications", ClientID: "restaurant-system"},
		Temporal: temporal.Config{
			HostPort:  "localhost:7233",
			Namespace: temporal.DefaultNamespace,
			TaskQueue: temporal.DefaultTaskQueue,
		},
		WebSocket: WebSocket{ConnectionTTLSeconds: 3600, ReaperIntervalSeconds: 60, PushConcurrency: 16},
		HTTP:      HTTP{Port: 3000, MaxConcurrent: 50},
		Worker:    Worker{Name: "stage-worker", Prefetch: 1, AutoComplete: false},
		Tracing:   tracing.Config{SampleRate: 1, Environment: "development"},
		Runtime:   Runtime{Store: StorePostgres, Sink: SinkRabbitMQ, Callback: CallbackTemporal},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path or a missing file leaves the defaults in place.
func Load(path string) (App, error) {
	return LoadWithEnv(path, os.Getenv)
}

func LoadWithEnv(path string, getenv func(string) string) (App, error) {
	a := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return App{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &a); err != nil {
				return App{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	applyEnv(&a, getenv)
	return a, nil
}

func applyEnv(a *App, getenv func(string) string) {
	str := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(dst *int, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(dst *bool, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str(&a.Database.Host, "DB_HOST")
	num(&a.Database.Port, "DB_PORT")
	str(&a.Database.User, "DB_USER")
	str(&a.Database.Password, "DB_PASSWORD")
	str(&a.Database.Database, "DB_NAME")
	str(&a.Database.SSLMode, "DB_SSLMODE")

	str(&a.RabbitMQ.Host, "RABBITMQ_HOST")
	num(&a.RabbitMQ.Port, "RABBITMQ_PORT")
	str(&a.RabbitMQ.User, "RABBITMQ_USER")
	str(&a.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	str(&a.RabbitMQ.VHost, "RABBITMQ_VHOST")

	if v := getenv("KAFKA_BROKERS"); strings.TrimSpace(v) != "" {
		a.Kafka.Brokers = kafka.ParseBrokers(v)
	}
	str(&a.Kafka.Topic, "KAFKA_TOPIC")

	str(&a.Temporal.HostPort, "TEMPORAL_HOSTPORT")
	str(&a.Temporal.Namespace, "TEMPORAL_NAMESPACE")
	str(&a.Temporal.TaskQueue, "TEMPORAL_TASK_QUEUE")

	num(&a.WebSocket.ConnectionTTLSeconds, "CONNECTION_TTL_SECONDS")
	num(&a.WebSocket.ReaperIntervalSeconds, "REAPER_INTERVAL_SECONDS")
	num(&a.HTTP.Port, "HTTP_PORT")
	num(&a.HTTP.MaxConcurrent, "MAX_CONCURRENT")

	str(&a.Worker.Name, "WORKER_NAME")
	num(&a.Worker.Prefetch, "WORKER_PREFETCH")
	flag(&a.Worker.AutoComplete, "WORKER_AUTO_COMPLETE")
	flag(&a.Worker.StrictOrdering, "STRICT_STAGE_ORDERING")

	str(&a.Tracing.ExporterURL, "OTEL_EXPORTER_URL")
	str(&a.Tracing.Environment, "ENVIRONMENT")

	str(&a.Runtime.Store, "STORE")
	str(&a.Runtime.Sink, "SINK")
	str(&a.Runtime.Callback, "CALLBACK")
}

// Validate checks that every selected backend has what it needs to connect.
func (a App) Validate() error {
	var errs []error
	switch a.Runtime.Store {
	case StoreMemory:
	case StorePostgres:
		if a.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required for store=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", a.Runtime.Store))
	}

	switch a.Runtime.Sink {
	case SinkNone:
	case SinkRabbitMQ, SinkKafka, SinkBoth:
		if a.Runtime.Sink != SinkKafka && a.RabbitMQ.Host == "" {
			errs = append(errs, fmt.Errorf("rabbitmq.host is required for sink=%s", a.Runtime.Sink))
		}
		if a.Runtime.Sink != SinkRabbitMQ && len(a.Kafka.Brokers) == 0 {
			errs = append(errs, fmt.Errorf("kafka.brokers is required for sink=%s", a.Runtime.Sink))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q", a.Runtime.Sink))
	}

	switch a.Runtime.Callback {
	case CallbackLog:
	case CallbackTemporal:
		if a.Temporal.HostPort == "" {
			errs = append(errs, errors.New("temporal.host_port is required for callback=temporal"))
		}
		if a.RabbitMQ.Host == "" {
			errs = append(errs, errors.New("rabbitmq.host is required for callback=temporal"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown callback %q", a.Runtime.Callback))
	}

	if a.WebSocket.ConnectionTTLSeconds <= 0 {
		errs = append(errs, errors.New("websocket.connection_ttl_seconds must be positive"))
	}
	if a.HTTP.MaxConcurrent <= 0 {
		errs = append(errs, errors.New("http.max_concurrent must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// FindConfig returns the first config file found in the usual places.
func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
