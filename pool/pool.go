// Package pool implements the multiplexed connection pool: a keyed map
// from host to Connection, a correlation table from invocation id to
// waiting caller, and the heartbeat/idle-reclamation loop.
package pool

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-mesh/dubbo-client/dubbo"
	"github.com/go-mesh/dubbo-client/hessian2"
	"github.com/go-mesh/dubbo-client/internal/errs"
	"github.com/go-mesh/dubbo-client/internal/log"
)

// Config is the subset of client.Options the pool needs; kept as a
// plain struct here (rather than importing client) so client can depend
// on pool without a cycle.
type Config struct {
	IdleTimeout            time.Duration
	HeartbeatCheckInterval time.Duration
	HeartbeatMaxMisses     int
}

// pendingCall is one in-flight invocation's result slot and wake event.
type pendingCall struct {
	done  chan struct{}
	value hessian2.Value
	err   error
}

type metrics struct {
	openConnections prometheus.Gauge
	inFlight        prometheus.Gauge
	heartbeatMisses *prometheus.GaugeVec
	reconnects      prometheus.Counter
	callLatency     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dubbo_pool_open_connections",
			Help: "Number of currently open provider connections.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dubbo_pool_in_flight_invocations",
			Help: "Number of calls awaiting a response.",
		}),
		heartbeatMisses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dubbo_pool_heartbeat_misses",
			Help: "Current unanswered-heartbeat count per host.",
		}, []string{"host"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dubbo_pool_reconnects_total",
			Help: "Connections replaced after exceeding heartbeat_max_misses.",
		}),
		callLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dubbo_pool_call_latency_seconds",
			Help:    "Latency of the pool's Call operation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.openConnections, m.inFlight, m.heartbeatMisses, m.reconnects, m.callLatency)
	}
	return m
}

// Pool is the pool state described in §3: connections, in-flight
// correlation table, heartbeat counters, and the connect lock.
type Pool struct {
	cfg Config

	connectMu   sync.Mutex
	connections map[string]*Connection

	pendingMu sync.Mutex
	pending   map[int64]*pendingCall

	heartbeatMu sync.Mutex
	heartbeats  map[string]int

	ids     idAllocator
	metrics *metrics

	stop chan struct{}
}

// New builds a Pool and starts its heartbeat/idle-reclamation
// goroutine. reg may be nil, in which case metrics are collected but
// not registered with any registry.
func New(cfg Config, reg prometheus.Registerer) *Pool {
	p := &Pool{
		cfg:         cfg,
		connections: make(map[string]*Connection),
		pending:     make(map[int64]*pendingCall),
		heartbeats:  make(map[string]int),
		metrics:     newMetrics(reg),
		stop:        make(chan struct{}),
	}
	go p.heartbeatLoop()
	return p
}

// Close tears down the heartbeat loop and every open connection.
func (p *Pool) Close() {
	close(p.stop)
	p.connectMu.Lock()
	defer p.connectMu.Unlock()
	for _, c := range p.connections {
		c.close()
	}
}

// getConnection implements the double-checked "ensure a Connection to
// host exists" step of §4.3.3.
func (p *Pool) getConnection(host string) (*Connection, error) {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()
	if c, ok := p.connections[host]; ok {
		return c, nil
	}
	c, err := dial(p, host)
	if err != nil {
		return nil, err
	}
	p.connections[host] = c
	p.metrics.openConnections.Set(float64(len(p.connections)))
	return c, nil
}

func (p *Pool) forget(c *Connection) {
	p.connectMu.Lock()
	defer p.connectMu.Unlock()
	if cur, ok := p.connections[c.host]; ok && cur == c {
		delete(p.connections, c.host)
		p.metrics.openConnections.Set(float64(len(p.connections)))
	}
}

// Call implements §4.3.3: ensure a connection, allocate an invocation
// id, write the frame, wait bounded by ctx/timeout, and resolve the
// caller's outcome by correlation id.
func (p *Pool) Call(ctx context.Context, host string, req *dubbo.Request, timeout time.Duration) (hessian2.Value, error) {
	start := time.Now()
	defer func() { p.metrics.callLatency.Observe(time.Since(start).Seconds()) }()

	conn, err := p.getConnection(host)
	if err != nil {
		return hessian2.Value{}, err
	}

	body, err := req.EncodeBody()
	if err != nil {
		return hessian2.Value{}, errs.WithStack(err)
	}
	invocationID := p.ids.nextID()
	frame := append(dubbo.EncodeRequestHeader(invocationID, int32(len(body))), body...)

	call := &pendingCall{done: make(chan struct{})}
	p.pendingMu.Lock()
	p.pending[invocationID] = call
	p.metrics.inFlight.Set(float64(len(p.pending)))
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, invocationID)
		p.metrics.inFlight.Set(float64(len(p.pending)))
		p.pendingMu.Unlock()
	}()

	if err := conn.write(frame); err != nil {
		return hessian2.Value{}, err
	}

	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case <-call.done:
		if call.err != nil {
			return hessian2.Value{}, call.err
		}
		return call.value, nil
	case <-waitCtx.Done():
		return hessian2.Value{}, errs.Wrap(errs.ErrRequestTimeout, "invocation %d to %s", invocationID, host)
	}
}

// deliverValue decodes a normal-status response body and wakes the
// matching caller, per §4.1.11/§4.3.5's NORMAL_BODY transition.
func (p *Pool) deliverValue(invocationID int64, body []byte) {
	call := p.takePending(invocationID)
	if call == nil {
		return
	}
	resp, err := dubbo.DecodeBody(body)
	if err != nil {
		call.err = errs.WithStack(err)
		close(call.done)
		return
	}
	if resp.Flag == dubbo.ResponseWithException {
		ex := dubbo.AsRemoteException(resp.Value)
		msg := ex.Cause + ": " + ex.DetailMessage
		if ex.StackTrace != "" {
			msg += "\n" + ex.StackTrace
		}
		call.err = errs.Wrap(errs.ErrRemoteApplication, "%s", msg)
	} else {
		call.value = resp.Value
	}
	close(call.done)
}

// deliverStatusError wakes the matching caller with a *remote response
// error* decoded from an error-frame body, per §4.3.5's ERROR_BODY
// transition.
func (p *Pool) deliverStatusError(invocationID int64, status byte, body []byte) {
	call := p.takePending(invocationID)
	if call == nil {
		return
	}
	text, err := dubbo.DecodeError(body)
	if err != nil {
		text = dubbo.StatusText(status)
	}
	call.err = errs.Wrap(dubbo.ErrorKindFor(status), "status %d (%s): %s", status, dubbo.StatusText(status), text)
	close(call.done)
}

func (p *Pool) takePending(invocationID int64) *pendingCall {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	call, ok := p.pending[invocationID]
	if !ok {
		log.Debugf("discarding response for unknown or already-timed-out invocation %d", invocationID)
		return nil
	}
	return call
}

func (p *Pool) decHeartbeatMiss(host string) {
	p.heartbeatMu.Lock()
	defer p.heartbeatMu.Unlock()
	if p.heartbeats[host] > 0 {
		p.heartbeats[host]--
	}
	p.metrics.heartbeatMisses.WithLabelValues(host).Set(float64(p.heartbeats[host]))
}
