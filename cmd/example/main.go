// Package main demonstrates wiring a listener, a send template, and a
// supervisor process around this library: configuration load, logger and
// metrics construction, one registered listener, an AWS SQS-backed
// client, and a health server, run to completion on a shutdown signal.
// Adapted from the teacher's cmd/consumer/main.go Application, with the
// Redis/MQTT pipeline replaced by a registry listener and a
// ContainerSupervisor.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sqskit/sqskit-go/awssqs"
	"github.com/sqskit/sqskit-go/circuitbreaker"
	"github.com/sqskit/sqskit-go/config"
	"github.com/sqskit/sqskit-go/healthserver"
	"github.com/sqskit/sqskit-go/logger"
	"github.com/sqskit/sqskit-go/message"
	"github.com/sqskit/sqskit-go/metrics"
	"github.com/sqskit/sqskit-go/ports"
	"github.com/sqskit/sqskit-go/registry"
	"github.com/sqskit/sqskit-go/send"
	"github.com/sqskit/sqskit-go/supervisor"
)

// orderPlaced is the example payload type for the demo listener.
type orderPlaced struct {
	OrderID int     `json:"order_id"`
	Amount  float64 `json:"amount"`
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv("SQSKIT_CONFIG_FILE"))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := awssqs.New(ctx, awssqs.Options{
		Region:          cfg.App.Region,
		EndpointURL:     cfg.App.EndpointURL,
		AccessKeyID:     cfg.App.AccessKeyID,
		SecretAccessKey: cfg.App.SecretAccessKey,
		SessionToken:    cfg.App.SessionToken,
	})
	if err != nil {
		log.Error("failed to create queue client", ports.Field{Key: "error", Value: err})
		return 1
	}

	collector := metrics.NewCompositeCollector(
		metrics.NewInMemoryCollector(256),
		metrics.NewPrometheusCollector(prometheus.DefaultRegisterer, "sqskit", "example"),
	)

	cb := circuitbreaker.New("queue-receive", 50, 5, 30*time.Second, 50, 20)

	const ordersQueue = "orders"
	listenerCfg := config.DefaultListenerConfig(ordersQueue)
	if err := registry.Register(registry.Default(), "orders-listener", listenerCfg,
		message.NewJSONConverter[orderPlaced](),
		func(ctx context.Context, msg *message.Message[orderPlaced], ack ports.Acknowledgement) error {
			order := msg.Body()
			log.Info("processing order",
				ports.Field{Key: "order_id", Value: order.OrderID},
				ports.Field{Key: "amount", Value: order.Amount},
			)
			return nil
		},
	); err != nil {
		log.Error("failed to register listener", ports.Field{Key: "error", Value: err})
		return 1
	}

	sup := supervisor.New(registry.Default(), client, collector, log, cb, cfg.Container)

	tmpl := send.New(client, cfg.Template, log, collector)
	_ = tmpl // available to callers that want to publish alongside the listener

	health := healthserver.New(sup, log, healthserver.Options{
		Addr:         ":8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	health.RegisterChecker(ordersQueue, healthserver.CheckerFunc(func(ctx context.Context) error {
		return client.HealthCheck(ctx, ordersQueue)
	}))
	health.Start()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := health.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shut down health server", ports.Field{Key: "error", Value: err})
		}
	}()

	return sup.Run(ctx)
}
