// Package connectivity watches network reachability with a periodic probe and
// fans state changes out to subscribers.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"
)

const (
	defaultProbeAddr     = "1.1.1.1:443"
	defaultProbeInterval = 10 * time.Second
	defaultProbeTimeout  = 3 * time.Second
)

// ProbeFunc reports whether the network is currently reachable.
type ProbeFunc func(ctx context.Context) bool

// TCPProbe dials addr and reports success. It is the default probe.
func TCPProbe(addr string, timeout time.Duration) ProbeFunc {
	return func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Monitor polls a probe on a fixed interval and notifies subscribers when the
// online state flips. The zero state before the first probe is offline until
// Start runs an immediate initial probe.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration

	mu        sync.Mutex
	online    bool
	nextID    int
	listeners map[int]func(bool)

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithProbe replaces the default TCP probe.
func WithProbe(probe ProbeFunc) Option {
	return func(m *Monitor) { m.probe = probe }
}

// WithInterval sets the polling interval.
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) { m.interval = interval }
}

// NewMonitor builds a stopped monitor. Call Start to begin probing.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		probe:     TCPProbe(defaultProbeAddr, defaultProbeTimeout),
		interval:  defaultProbeInterval,
		listeners: map[int]func(bool){},
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start probes immediately, then on every interval tick until Stop or context
// cancellation.
func (m *Monitor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.apply(m.probe(runCtx))

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				m.apply(m.probe(runCtx))
			}
		}
	}()
}

// Stop halts probing. Subscribers stay registered.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// IsOnline reports the last observed state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for state-change notifications and returns an
// unsubscribe func. fn is invoked synchronously from the probe goroutine.
func (m *Monitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetOnline force-applies a state, used when an external signal (for example a
// failed API call) learns about connectivity before the next probe tick.
func (m *Monitor) SetOnline(online bool) {
	m.apply(online)
}

func (m *Monitor) apply(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var listeners []func(bool)
	if changed {
		listeners = make([]func(bool), 0, len(m.listeners))
		for _, fn := range m.listeners {
			listeners = append(listeners, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(online)
	}
}
