package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.temporal.io/sdk/client"
)

type Config struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

const (
	DefaultNamespace = "default"
	DefaultTaskQueue = "order-fulfillment"
)

// Dial connects to the Temporal frontend, retrying while it starts up.
func Dial(ctx context.Context, cfg Config) (client.Client, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second

	var c client.Client
	err := backoff.Retry(func() error {
		var err error
		c, err = client.DialContext(ctx, client.Options{
			HostPort:  cfg.HostPort,
			Namespace: cfg.Namespace,
		})
		return err
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("temporal unreachable at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}
