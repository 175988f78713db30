// Package registry implements the coordination-service-backed provider
// directory: a client that resolves an interface name to a host,
// keeping its provider list, weights, and consumer registration live by
// subscribing to watches, per §4.4.
package registry

import (
	"math/rand"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/go-zookeeper/zk"

	"github.com/go-mesh/dubbo-client/internal/errs"
	"github.com/go-mesh/dubbo-client/internal/log"
)

// interfaceState is one interface's provider snapshot: the ordered host
// list and, if configurators are present, a per-host weight map. A
// whole new interfaceState is built and swapped in atomically on every
// watch fire — partial in-place mutation is never attempted, matching
// the original's "del self.weights[interface]" full-replace behavior on
// an empty configurator set (documented as a resolved Open Question).
type interfaceState struct {
	hosts   []string
	weights map[string]int // nil means "no configurators; route uniformly"
}

// Client is the registry state described in §3: providers, weights, and
// the consumer-registration lock, all keyed by interface.
type Client struct {
	conn            *zk.Conn
	applicationName string
	localIP         string
	pid             int

	interfacesMu sync.Mutex
	interfaces   map[string]*atomic.Pointer[interfaceState]
}

// Dial connects to the coordination service at the given "host:port"
// addresses and returns a Client. The connection and every watch it
// arms live for the process's lifetime.
func Dial(addrs []string, applicationName string) (*Client, error) {
	conn, _, err := zk.Connect(addrs, 10*time.Second)
	if err != nil {
		return nil, errs.Wrap(errs.ErrRegistry, "connect to coordination service: %v", err)
	}
	ip, err := localIP()
	if err != nil {
		conn.Close()
		return nil, errs.WithStack(err)
	}
	return &Client{
		conn:            conn,
		applicationName: applicationName,
		localIP:         ip,
		pid:             os.Getpid(),
		interfaces:      make(map[string]*atomic.Pointer[interfaceState]),
	}, nil
}

// Close releases the coordination-service session.
func (c *Client) Close() { c.conn.Close() }

// Host resolves iface to one provider host, per get_provider_host:
// loads (and, on first use, watches) the provider list and any
// configurator weights, then applies weighted routing.
func (c *Client) Host(iface string) (string, error) {
	state, err := c.stateFor(iface)
	if err != nil {
		return "", err
	}
	return routeWithWeight(iface, state)
}

func (c *Client) stateFor(iface string) (*interfaceState, error) {
	c.interfacesMu.Lock()
	slot, ok := c.interfaces[iface]
	c.interfacesMu.Unlock()
	if ok {
		if s := slot.Load(); s != nil {
			return s, nil
		}
	}
	return c.loadProviders(iface)
}

// loadProviders implements get_provider_host's cold path: list +
// watch providers, register this process as a consumer, and load any
// configurator weights.
func (c *Client) loadProviders(iface string) (*interfaceState, error) {
	path := providersPath(iface)
	exists, _, err := c.conn.Exists(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrRegistry, "exists %s: %v", path, err)
	}
	if !exists {
		return nil, errs.Wrap(errs.ErrRegistry, "no providers path for interface %s", iface)
	}

	children, _, watch, err := c.conn.ChildrenW(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrRegistry, "list providers for %s: %v", iface, err)
	}
	if len(children) == 0 {
		return nil, errs.Wrap(errs.ErrRegistry, "no providers for interface %s", iface)
	}

	providers := make([]providerURL, 0, len(children))
	hosts := make([]string, 0, len(children))
	for _, child := range children {
		pu, err := parseProviderURL(child)
		if err != nil {
			return nil, err
		}
		if pu.Scheme != "dubbo" {
			continue
		}
		providers = append(providers, pu)
		hosts = append(hosts, pu.Host)
	}
	if len(hosts) == 0 {
		return nil, errs.Wrap(errs.ErrRegistry, "no dubbo:// providers for interface %s", iface)
	}

	if err := c.registerConsumer(iface, providers[0]); err != nil {
		log.WithField("interface", iface).Warnf("consumer registration failed: %v", err)
	}

	weights := c.loadWeights(iface)

	slot := c.slotFor(iface)
	state := &interfaceState{hosts: hosts, weights: weights}
	slot.Store(state)
	go c.watchProviders(iface, watch)
	return state, nil
}

// loadWeights reads the configurators path once, per §4.4. A nil return
// means "no configurators" (uniform routing); the map is never
// partially applied.
func (c *Client) loadWeights(iface string) map[string]int {
	path := configuratorsPath(iface)
	children, _, watch, err := c.conn.ChildrenW(path)
	if err != nil {
		log.WithField("interface", iface).Debugf("no configurators watch for %s: %v", iface, err)
		return nil
	}
	go c.watchConfigurators(iface, watch)
	if len(children) == 0 {
		return nil
	}
	weights := make(map[string]int, len(children))
	for _, child := range children {
		pu, err := parseProviderURL(child)
		if err != nil {
			continue
		}
		weights[pu.Host] = weightOf(pu.Fields)
	}
	return weights
}

// watchProviders re-arms itself on every fire and replaces the whole
// interfaceState snapshot, per §4.4's "children watch" re-arm rule.
func (c *Client) watchProviders(iface string, events <-chan zk.Event) {
	<-events
	path := providersPath(iface)
	children, _, next, err := c.conn.ChildrenW(path)
	if err != nil {
		log.WithField("interface", iface).Warnf("re-arm providers watch failed: %v", err)
		return
	}
	if len(children) == 0 {
		log.WithField("interface", iface).Infof("no providers remain for interface %s", iface)
		c.slotFor(iface).Store(nil)
		go c.watchProviders(iface, next)
		return
	}
	hosts := make([]string, 0, len(children))
	for _, child := range children {
		pu, err := parseProviderURL(child)
		if err != nil || pu.Scheme != "dubbo" {
			continue
		}
		hosts = append(hosts, pu.Host)
	}
	slot := c.slotFor(iface)
	prev := slot.Load()
	var weights map[string]int
	if prev != nil {
		weights = prev.weights
	}
	slot.Store(&interfaceState{hosts: hosts, weights: weights})
	go c.watchProviders(iface, next)
}

// watchConfigurators re-arms itself on every fire and replaces the
// weight map wholesale: an empty configurator set clears all weights
// for the interface (uniform routing resumes), matching the original's
// unconditional "del self.weights[interface]" on an empty result.
func (c *Client) watchConfigurators(iface string, events <-chan zk.Event) {
	<-events
	path := configuratorsPath(iface)
	children, _, next, err := c.conn.ChildrenW(path)
	if err != nil {
		log.WithField("interface", iface).Warnf("re-arm configurators watch failed: %v", err)
		return
	}
	var weights map[string]int
	if len(children) > 0 {
		weights = make(map[string]int, len(children))
		for _, child := range children {
			pu, err := parseProviderURL(child)
			if err != nil {
				continue
			}
			weights[pu.Host] = weightOf(pu.Fields)
		}
	}
	slot := c.slotFor(iface)
	if prev := slot.Load(); prev != nil {
		slot.Store(&interfaceState{hosts: prev.hosts, weights: weights})
	}
	go c.watchConfigurators(iface, next)
}

func (c *Client) slotFor(iface string) *atomic.Pointer[interfaceState] {
	c.interfacesMu.Lock()
	defer c.interfacesMu.Unlock()
	if slot, ok := c.interfaces[iface]; ok {
		return slot
	}
	slot := &atomic.Pointer[interfaceState]{}
	c.interfaces[iface] = slot
	return slot
}

// registerConsumer creates this process's ephemeral consumer node,
// grounded on register.py's _register_consumer.
func (c *Client) registerConsumer(iface string, provider providerURL) error {
	consumerStr := buildConsumerURL(c.localIP, c.applicationName, provider, c.pid)
	path := consumersPath(iface)
	if err := c.ensurePath(path); err != nil {
		return err
	}
	node := path + "/" + zkEscape(consumerStr)
	_, err := c.conn.Create(node, nil, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return errs.Wrap(errs.ErrRegistry, "register consumer %s: %v", iface, err)
	}
	return nil
}

// ensurePath creates every missing segment of path as a persistent
// node, mirroring KazooClient.ensure_path.
func (c *Client) ensurePath(path string) error {
	var cur string
	for _, seg := range splitPath(path) {
		cur += "/" + seg
		exists, _, err := c.conn.Exists(cur)
		if err != nil {
			return errs.Wrap(errs.ErrRegistry, "exists %s: %v", cur, err)
		}
		if !exists {
			if _, err := c.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
				return errs.Wrap(errs.ErrRegistry, "create %s: %v", cur, err)
			}
		}
	}
	return nil
}

func splitPath(path string) []string {
	var segs []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	return segs
}

func zkEscape(s string) string {
	// ZooKeeper node names may not contain '/'; every other byte the
	// consumer URL can produce is already percent-free ASCII after
	// buildConsumerURL's own composition.
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			out = append(out, '%', '2', 'F')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// routeWithWeight implements _routing_with_wight: uniform random choice
// when no weights are configured, otherwise a weighted draw defaulting
// unlisted hosts to weight 100.
func routeWithWeight(iface string, state *interfaceState) (string, error) {
	if len(state.hosts) == 0 {
		return "", errs.Wrap(errs.ErrRegistry, "no providers for interface %s", iface)
	}
	if len(state.weights) == 0 {
		return state.hosts[rand.Intn(len(state.hosts))], nil
	}

	total := 0
	hostWeights := make([]int, len(state.hosts))
	for i, h := range state.hosts {
		w, ok := state.weights[h]
		if !ok {
			w = 100
		}
		hostWeights[i] = w
		total += w
	}
	if total <= 0 {
		return "", errs.Wrap(errs.ErrRegistry, "weight computation failed for interface %s", iface)
	}

	hit := rand.Intn(total)
	running := 0
	for i, w := range hostWeights {
		running += w
		if hit < running {
			return state.hosts[i], nil
		}
	}
	return "", errs.Wrap(errs.ErrRegistry, "error finding weighted host for interface %s", iface)
}

func localIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", errs.Wrap(errs.ErrRegistry, "determine local ip: %v", err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", errs.Wrap(errs.ErrRegistry, "no non-loopback ipv4 address found")
}
