package temporal

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// Config locates the Temporal frontend.
type Config struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Dial waits for the frontend's TCP port and then dials the SDK client,
// retrying with a linear backoff capped at 15s until ctx ends.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (client.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for attempt := 1; ; attempt++ {
		conn, err := (&net.Dialer{Timeout: 2 * time.Second}).DialContext(ctx, "tcp", cfg.HostPort)
		if err == nil {
			_ = conn.Close()
			break
		}
		logger.Warn("Waiting for Temporal TCP endpoint", zap.String("host", cfg.HostPort), zap.Int("attempt", attempt))
		if err := sleep(ctx, time.Second); err != nil {
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		c, err := client.DialContext(ctx, client.Options{
			HostPort:  cfg.HostPort,
			Namespace: cfg.Namespace,
			Logger:    NewZapAdapter(logger),
		})
		if err == nil {
			return c, nil
		}
		delay := time.Duration(attempt) * time.Second
		if delay > 15*time.Second {
			delay = 15 * time.Second
		}
		logger.Warn("Temporal not ready, retrying",
			zap.Int("attempt", attempt),
			zap.String("host", cfg.HostPort),
			zap.Duration("sleep", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("dial temporal %s: %w", cfg.HostPort, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
