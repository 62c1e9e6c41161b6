// Package modbus wraps a single device's Modbus/TCP connection: connect,
// read the CheckWeigher register range, and close on any failure so the
// next cycle re-enters the connect path (C3).
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	gomodbus "github.com/goburrow/modbus"
	"github.com/sony/gobreaker"
)

// GapAddress and RegisterCount define the single holding-register read
// this system ever issues.
const (
	GapAddress   = 30720
	RegisterCount = 11
)

// Register indices within the read vector.
const (
	IdxOperationType  = 0
	IdxWeight         = 1
	IdxClassification = 2
	IdxPPM            = 3
	IdxReason         = 7
	IdxOperationID    = 10
)

// ErrTimeout wraps a read that exceeded its deadline.
var ErrTimeout = fmt.Errorf("modbus: read deadline exceeded")

// Session owns one TCP connection to one device. Connect is guarded by a
// mutex so concurrent reconnect attempts from error paths cannot race.
type Session struct {
	address string
	timeout time.Duration

	mu      sync.Mutex
	handler *gomodbus.TCPClientHandler
	client  gomodbus.Client

	breaker *gobreaker.CircuitBreaker
}

// NewSession builds a session for a device at host:port. timeout bounds
// both connect and read.
func NewSession(deviceID, host string, port int, timeout time.Duration) *Session {
	s := &Session{
		address: fmt.Sprintf("%s:%d", host, port),
		timeout: timeout,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "modbus-" + deviceID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     timeout * 6,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return s
}

// connectLocked establishes the TCP connection if not already open. Must
// be called with mu held.
func (s *Session) connectLocked() error {
	if s.handler != nil {
		return nil
	}
	handler := gomodbus.NewTCPClientHandler(s.address)
	handler.Timeout = s.timeout
	if err := handler.Connect(); err != nil {
		return fmt.Errorf("modbus: connect %s: %w", s.address, err)
	}
	s.handler = handler
	s.client = gomodbus.NewClient(handler)
	return nil
}

// closeLocked tears down the connection so the next Read re-enters the
// connect path. Must be called with mu held.
func (s *Session) closeLocked() {
	if s.handler != nil {
		s.handler.Close()
		s.handler = nil
		s.client = nil
	}
}

// Read ensures the session is connected and performs the register read in
// the same call, so a fresh connect is never left to return stale data on
// the next cycle.
func (s *Session) Read(ctx context.Context) ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(); err != nil {
		s.closeLocked()
		return nil, err
	}

	type result struct {
		regs []uint16
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		raw, err := s.client.ReadHoldingRegisters(GapAddress, RegisterCount)
		if err != nil {
			resultCh <- result{nil, err}
			return
		}
		resultCh <- result{decodeRegisters(raw), nil}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			s.closeLocked()
			return nil, fmt.Errorf("modbus: read %s: %w", s.address, r.err)
		}
		return r.regs, nil
	case <-time.After(s.timeout):
		s.closeLocked()
		return nil, ErrTimeout
	case <-ctx.Done():
		s.closeLocked()
		return nil, ctx.Err()
	}
}

// ReadGuarded runs Read through the circuit breaker so a device with a
// sustained failure streak is given a cooldown window before the poller
// hammers it with further connect attempts.
func (s *Session) ReadGuarded(ctx context.Context) ([]uint16, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.Read(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]uint16), nil
}

// Close releases the underlying TCP connection, if any.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func decodeRegisters(raw []byte) []uint16 {
	regs := make([]uint16, len(raw)/2)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[i*2 : i*2+2])
	}
	return regs
}
