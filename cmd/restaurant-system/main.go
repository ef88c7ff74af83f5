package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"restaurant-system/internal/app/engine"
	"restaurant-system/internal/app/notify"
	"restaurant-system/internal/app/order"
	"restaurant-system/internal/app/stageworker"
	"restaurant-system/internal/app/tracking"
	"restaurant-system/internal/common/config"
	"restaurant-system/internal/common/logger"
	"restaurant-system/internal/common/tracing"
)

const modes = "order-service | stage-worker | engine-worker | tracking-service | notification-subscriber"

func main() {
	mode := flag.String("mode", "", modes)
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml if present)")
	store := flag.String("store", "", "postgres | memory")
	sink := flag.String("sink", "", "rabbitmq | kafka | both | none")
	cb := flag.String("callback", "", "temporal | log")
	port := flag.Int("port", 0, "http port for services that expose HTTP")
	maxConc := flag.Int("max-concurrent", 0, "max concurrent HTTP requests")
	workerName := flag.String("worker-name", "", "stage-worker: consumer name")
	stageList := flag.String("stages", "", "stage-worker: comma-separated stages to consume (default all)")
	prefetch := flag.Int("prefetch", 0, "stage-worker: RabbitMQ prefetch")
	autoComplete := flag.Bool("auto-complete", false, "stage-worker: complete each stage right after claiming it")
	flag.Parse()

	lg := logger.New("bootstrap")

	path := *configPath
	if path == "" {
		path, _ = config.FindConfig()
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}

	overrideStr(&cfg.Runtime.Store, *store)
	overrideStr(&cfg.Runtime.Sink, *sink)
	overrideStr(&cfg.Runtime.Callback, *cb)
	overrideStr(&cfg.Worker.Name, *workerName)
	overrideInt(&cfg.HTTP.Port, *port)
	overrideInt(&cfg.HTTP.MaxConcurrent, *maxConc)
	overrideInt(&cfg.Worker.Prefetch, *prefetch)
	if *autoComplete {
		cfg.Worker.AutoComplete = true
	}
	if *mode == "tracking-service" && *port == 0 && cfg.HTTP.Port == config.Defaults().HTTP.Port {
		cfg.HTTP.Port = 3002
	}

	if err := cfg.Validate(); err != nil {
		lg.Error("config_invalid", err, nil)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdown, err := tracing.Init(ctx, *mode, cfg.Tracing)
	if err != nil {
		lg.Error("tracing_init_failed", err, nil)
		os.Exit(1)
	}
	defer func() { _ = shutdown(context.Background()) }()

	svc := logger.New(*mode)
	switch *mode {
	case "order-service":
		err = order.Run(ctx, cfg, svc)
	case "stage-worker":
		var stages []string
		if s := strings.TrimSpace(*stageList); s != "" {
			stages = strings.Split(s, ",")
		}
		parsed, perr := stageworker.ParseStages(stages)
		if perr != nil {
			fmt.Fprintln(os.Stderr, perr)
			os.Exit(2)
		}
		err = stageworker.Run(ctx, cfg, parsed, svc)
	case "engine-worker":
		err = engine.Run(ctx, cfg, svc)
	case "tracking-service":
		err = tracking.Run(ctx, cfg, svc)
	case "notification-subscriber":
		err = notify.Run(ctx, cfg, svc)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}
	if err != nil {
		svc.Error("fatal", err, nil)
		os.Exit(1)
	}
	svc.Info("graceful_shutdown", nil)
}

func overrideStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
