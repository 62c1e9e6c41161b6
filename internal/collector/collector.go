// Package collector wires configuration, the connection pool, the two
// queues, device pollers, and batch persisters into a running process,
// and drives graceful shutdown (C11).
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/config"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/dispatch"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/model"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/modbus"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/monitor"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/persist"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/poller"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/queue"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/store"
)

const (
	queueCapacity      = 10_000
	heartbeatFlushTick = 5 * time.Second
)

// Collector holds everything started by the collector process.
type Collector struct {
	Pool           *store.Pool
	Monitor        *monitor.Monitor
	MeasurementsQ  *queue.Bounded[*model.Measurement]
	EventsQ        *queue.Bounded[*model.StateEvent]
	pollers        []*poller.Poller
	measurementsW  *persist.Worker[*model.Measurement]
	eventsW        *persist.Worker[*model.StateEvent]
	heartbeats     *store.HeartbeatRepository
}

// New builds a Collector from cfg. It opens the pool and bootstraps the
// schema, but does not start any goroutines yet — call Start for that.
func New(ctx context.Context, cfg *config.Config) (*Collector, error) {
	pool, err := store.Open(cfg.Global.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("collector: open pool: %w", err)
	}

	measurementsRepo := store.NewMeasurementRepository(pool)
	eventsRepo := store.NewEventRepository(pool)

	if err := measurementsRepo.CreateSchema(ctx); err != nil {
		return nil, fmt.Errorf("collector: bootstrap measurements schema: %w", err)
	}
	if err := eventsRepo.CreateSchema(ctx); err != nil {
		return nil, fmt.Errorf("collector: bootstrap events schema: %w", err)
	}

	heartbeats := store.NewHeartbeatRepository(pool)
	if err := heartbeats.CreateSchema(ctx); err != nil {
		return nil, fmt.Errorf("collector: bootstrap heartbeats schema: %w", err)
	}

	mon := monitor.New()
	measurementsQ := queue.NewBounded[*model.Measurement](queueCapacity)
	eventsQ := queue.NewBounded[*model.StateEvent](queueCapacity)

	c := &Collector{
		Pool:          pool,
		Monitor:       mon,
		MeasurementsQ: measurementsQ,
		EventsQ:       eventsQ,
		measurementsW: persist.NewWorker(monitor.WorkerMeasurements, measurementsQ, measurementsRepo.InsertMany, mon),
		eventsW:       persist.NewWorker(monitor.WorkerEvents, eventsQ, eventsRepo.InsertMany, mon),
		heartbeats:    heartbeats,
	}

	for _, d := range cfg.Devices {
		if !d.Enabled {
			continue
		}
		c.pollers = append(c.pollers, c.buildPoller(d))
	}

	return c, nil
}

func (c *Collector) buildPoller(d config.DeviceConfig) *poller.Poller {
	session := modbus.NewSession(d.CWID, d.IPAddress, d.Port, d.Timeout)

	reg := dispatch.NewRegistry()
	reg.On(dispatch.WeightRead, func(ctx context.Context, payload any) error {
		return c.MeasurementsQ.Put(ctx, payload.(*model.Measurement))
	})
	reg.On(dispatch.EventChanged, func(ctx context.Context, payload any) error {
		return c.EventsQ.Put(ctx, payload.(*model.StateEvent))
	})
	reg.On(dispatch.Error, func(_ context.Context, payload any) error {
		slog.With("device_id", d.CWID).Error("poller error", "error", payload)
		return nil
	})
	reg.On(dispatch.TimeoutError, func(_ context.Context, payload any) error {
		slog.With("device_id", d.CWID).Warn("poller read timeout", "error", payload)
		return nil
	})

	return poller.New(d.CWID, session, reg, c.Monitor, d.PollInterval)
}

// Name identifies the service for lifecycle logging.
func (c *Collector) Name() string { return "collector" }

// Start launches every poller and persister and blocks until ctx is
// cancelled, then awaits their graceful drain before returning.
func (c *Collector) Start(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		c.measurementsW.Run(ctx)
		done <- struct{}{}
	}()
	go func() {
		c.eventsW.Run(ctx)
		done <- struct{}{}
	}()
	for _, p := range c.pollers {
		go p.Run(ctx)
	}
	go c.flushHeartbeats(ctx)

	<-ctx.Done()
	slog.Info("collector: draining persisters")

	<-done
	<-done
	slog.Info("collector: drain complete")
	return nil
}

// flushHeartbeats periodically publishes the in-memory monitor snapshot
// to the heartbeats table so the api process — a separate OS process
// that never reads this one's memory — can serve GET /hhh.
func (c *Collector) flushHeartbeats(ctx context.Context) {
	ticker := time.NewTicker(heartbeatFlushTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.heartbeats.UpsertSnapshot(ctx, c.Monitor.Snapshot()); err != nil {
				slog.Error("heartbeat flush failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop closes the connection pool. Start must already have returned
// (its own ctx cancellation drains the persisters) before Stop runs.
func (c *Collector) Stop(ctx context.Context) error {
	return c.Pool.Close()
}

// Health reports the pool's reachability.
func (c *Collector) Health() error {
	return c.Pool.Ping(context.Background())
}
