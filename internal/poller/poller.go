// Package poller implements the per-device poll loop and state machine
// that turns raw Modbus register snapshots into typed measurement and
// event payloads (C4), plus its reconnect policy (C5).
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/flowcatalyst-checkweigher/supervisor/internal/dispatch"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/model"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/modbus"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/monitor"
	"github.com/flowcatalyst-checkweigher/supervisor/internal/telemetry"
)

type state int

const (
	stateDisconnected state = iota
	stateBackoff
	stateConnected
)

// session is the subset of *modbus.Session the state machine depends
// on, narrowed to an interface so the machine can be driven by a fake
// device in tests instead of a live Modbus/TCP connection.
type session interface {
	ReadGuarded(ctx context.Context) ([]uint16, error)
	Close()
}

// Poller owns one device's session, state machine, and dispatch wiring.
// It is single-writer to its own DevicePollerState; the only externally
// read field is latestSnapshot, exposed through Latest().
type Poller struct {
	deviceID     string
	session      session
	backoff      *Backoff
	dispatch     *dispatch.Registry
	monitor      *monitor.Monitor
	pollInterval time.Duration
	log          *slog.Logger

	lastOperationID   uint32
	lastOperationType int16
	openEvent         *model.StateEvent
	connected         bool

	latestSnapshot atomic.Pointer[model.Measurement]
}

// New builds a poller for one device. dispatch must already have its
// sinks wired (WEIGHT_READ, EVENT_CHANGED, ERROR, ...).
func New(deviceID string, sess *modbus.Session, reg *dispatch.Registry, mon *monitor.Monitor, pollInterval time.Duration) *Poller {
	return &Poller{
		deviceID:     deviceID,
		session:      sess,
		backoff:      NewBackoff(),
		dispatch:     reg,
		monitor:      mon,
		pollInterval: pollInterval,
		log:          slog.With("device_id", deviceID),
	}
}

// Latest returns the last decoded measurement, or nil if none yet.
// Best-effort freshness: no synchronization with the owning poller beyond
// the atomic pointer swap.
func (p *Poller) Latest() *model.Measurement {
	return p.latestSnapshot.Load()
}

// Run drives the state machine until ctx is cancelled. It starts in
// Disconnected and never issues further I/O once ctx is done.
func (p *Poller) Run(ctx context.Context) {
	telemetry.RecordStart(p.deviceID, time.Now())
	st := stateDisconnected

	for {
		if ctx.Err() != nil {
			return
		}

		switch st {
		case stateDisconnected:
			// Read() ensures-connected and reads in the same call, so
			// Disconnected and Connected drive through the same path;
			// only the reconnect counter distinguishes a fresh connect.
			if !p.connected {
				telemetry.ReconnectsTotal.WithLabelValues(p.deviceID).Inc()
			}
			st = p.doRead(ctx)
		case stateBackoff:
			if err := p.backoff.Sleep(ctx); err != nil {
				return
			}
			st = stateDisconnected
		case stateConnected:
			// doRead performs both the Connected read and, on success,
			// the Decoding step from the state machine in one call.
			st = p.doRead(ctx)
		}

		if st == stateConnected {
			p.monitor.UpdateHeartbeat(monitor.DeviceKey(p.deviceID), -1, 0)
			select {
			case <-time.After(p.pollInterval):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Poller) doRead(ctx context.Context) state {
	start := time.Now()
	regs, err := p.session.ReadGuarded(ctx)
	telemetry.RecordRead(p.deviceID, time.Since(start))

	if err != nil {
		if err == modbus.ErrTimeout {
			telemetry.ReadsTimeout.WithLabelValues(p.deviceID).Inc()
			_ = p.dispatch.Dispatch(ctx, dispatch.TimeoutError, err)
		} else {
			telemetry.ReadsError.WithLabelValues(p.deviceID).Inc()
			_ = p.dispatch.Dispatch(ctx, dispatch.Error, err)
		}
		p.session.Close()
		p.setConnected(false)
		return stateBackoff
	}

	telemetry.ReadsSuccess.WithLabelValues(p.deviceID).Inc()
	p.backoff.Reset()
	p.setConnected(true)

	if err := p.decodeAndEmit(ctx, regs, start); err != nil {
		p.log.Error("unexpected decode error", "error", err)
		_ = p.dispatch.Dispatch(ctx, dispatch.Error, err)
		p.session.Close()
		p.setConnected(false)
		return stateBackoff
	}

	return stateConnected
}

func (p *Poller) setConnected(connected bool) {
	p.connected = connected
	telemetry.RecordConnected(p.deviceID, connected)
}

// decodeAndEmit implements the Decoding state from spec §4.4: it builds a
// Measurement, updates latestSnapshot, and — only on a transaction
// boundary — dispatches WEIGHT_READ / EVENT_CHANGED and commits
// last_operation_id/last_operation_type together.
func (p *Poller) decodeAndEmit(ctx context.Context, regs []uint16, now time.Time) error {
	if len(regs) <= modbus.IdxOperationID {
		return fmt.Errorf("poller: short register vector (%d)", len(regs))
	}

	m := &model.Measurement{
		DeviceID:       p.deviceID,
		OperationType:  int16(regs[modbus.IdxOperationType]),
		Weight:         int32(int16(regs[modbus.IdxWeight])),
		Classification: int16(regs[modbus.IdxClassification]),
		PPM:            int16(regs[modbus.IdxPPM]),
		Reason:         int16(regs[modbus.IdxReason]),
		OperationID:    uint32(regs[modbus.IdxOperationID]),
		Timestamp:      now,
	}
	p.latestSnapshot.Store(m)

	if m.OperationID == p.lastOperationID {
		return nil
	}

	if m.OperationType == model.OperationTypeRun {
		if err := p.dispatch.Dispatch(ctx, dispatch.WeightRead, m); err != nil {
			p.log.Warn("weight_read sink failed", "error", err)
		}
	}

	if m.OperationType != p.lastOperationType {
		if p.openEvent != nil {
			p.openEvent.Close(now, m.Reason)
			if err := p.dispatch.Dispatch(ctx, dispatch.EventChanged, p.openEvent); err != nil {
				p.log.Warn("event_changed sink failed", "error", err)
			}
		}

		kind := model.EventStop
		if m.OperationType == model.OperationTypeRun {
			kind = model.EventRun
		}
		p.openEvent = &model.StateEvent{
			DeviceID:  p.deviceID,
			Kind:      kind,
			Reason:    m.Reason,
			StartedAt: now,
		}
	}

	p.lastOperationID = m.OperationID
	p.lastOperationType = m.OperationType
	return nil
}
