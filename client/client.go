// Package client is the public façade: it wires the codec, pool, and
// registry together behind one Call method. Per spec.md §1's scope
// note, the reflection-based generated-stub ergonomics layer a full RPC
// proxy would add is an explicit non-goal; this package supplies just
// the one method the core needs to be reachable through.
package client

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-mesh/dubbo-client/dubbo"
	"github.com/go-mesh/dubbo-client/hessian2"
	"github.com/go-mesh/dubbo-client/internal/errs"
	"github.com/go-mesh/dubbo-client/pool"
	"github.com/go-mesh/dubbo-client/registry"
)

// Client owns an explicit pool.Pool and registry.Client — no
// process-wide singletons. Constructed via New, it is the sole
// collaborator the caller interacts with.
type Client struct {
	opts *Options
	pool *pool.Pool
	reg  *registry.Client
}

// New builds a Client. zkAddrs are the coordination-service host:port
// addresses used to resolve providers; reg, if non-nil, is the
// Prometheus registerer the pool's metrics are registered with.
func New(opts *Options, zkAddrs []string, reg prometheus.Registerer) (*Client, error) {
	if opts == nil {
		var err error
		opts, err = NewOptions()
		if err != nil {
			return nil, err
		}
	}

	regClient, err := registry.Dial(zkAddrs, opts.ApplicationName)
	if err != nil {
		return nil, err
	}

	p := pool.New(pool.Config{
		IdleTimeout:            opts.IdleTimeout,
		HeartbeatCheckInterval: opts.HeartbeatCheckInterval,
		HeartbeatMaxMisses:     opts.HeartbeatMaxMisses,
	}, reg)

	return &Client{opts: opts, pool: p, reg: regClient}, nil
}

// Close tears down the pool's connections and the registry session.
func (c *Client) Close() {
	c.pool.Close()
	c.reg.Close()
}

// Call resolves interfaceName to a provider host via the registry,
// builds the wire request, and blocks on the pool's correlated call
// operation. It is the external Call contract of §6 with one added
// serviceVersion parameter: Call(ctx, interfaceName, serviceVersion,
// method, args, timeout).
func (c *Client) Call(ctx context.Context, interfaceName, serviceVersion, method string, args []hessian2.Value, timeout time.Duration) (hessian2.Value, error) {
	host, err := c.reg.Host(interfaceName)
	if err != nil {
		return hessian2.Value{}, errs.WithStack(err)
	}

	req := dubbo.NewRequest(interfaceName, serviceVersion, method, args)
	return c.pool.Call(ctx, host, req, timeout)
}
