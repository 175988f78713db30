package pool

import (
	"time"

	"github.com/go-mesh/dubbo-client/dubbo"
	"github.com/go-mesh/dubbo-client/internal/log"
)

// heartbeatLoop implements §4.3.4: every HeartbeatCheckInterval, every
// connection idle past IdleTimeout either gets a heartbeat request sent
// (miss counter incremented) or, once HeartbeatMaxMisses is reached, is
// replaced outright. Unblocking pending callers on a replaced connection
// is not attempted here; they time out naturally per §4.3.4.
func (p *Pool) heartbeatLoop() {
	ticker := time.NewTicker(p.cfg.HeartbeatCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweepOnce()
		}
	}
}

func (p *Pool) sweepOnce() {
	p.connectMu.Lock()
	hosts := make([]string, 0, len(p.connections))
	conns := make([]*Connection, 0, len(p.connections))
	for h, c := range p.connections {
		hosts = append(hosts, h)
		conns = append(conns, c)
	}
	p.connectMu.Unlock()

	for i, host := range hosts {
		conn := conns[i]
		if conn.idleFor() <= p.cfg.IdleTimeout {
			continue
		}
		p.checkConn(host, conn)
	}
}

func (p *Pool) checkConn(host string, conn *Connection) {
	p.heartbeatMu.Lock()
	misses := p.heartbeats[host]
	p.heartbeatMu.Unlock()

	if misses >= p.cfg.HeartbeatMaxMisses {
		p.replaceConnection(host, conn)
		return
	}

	p.heartbeatMu.Lock()
	p.heartbeats[host] = misses + 1
	p.metrics.heartbeatMisses.WithLabelValues(host).Set(float64(misses + 1))
	p.heartbeatMu.Unlock()

	invocationID := p.ids.nextID()
	req := dubbo.EncodeHeartbeatRequest(invocationID)
	if err := conn.write(req); err != nil {
		log.WithField("host", host).Warnf("heartbeat send failed: %v", err)
	}
}

// replaceConnection closes the old connection and forgets it; a new one
// is dialed lazily on the next Call, matching the original's reconnect-
// on-next-use behavior.
func (p *Pool) replaceConnection(host string, conn *Connection) {
	p.connectMu.Lock()
	if cur, ok := p.connections[host]; ok && cur == conn {
		delete(p.connections, host)
	}
	p.connectMu.Unlock()

	conn.close()

	p.heartbeatMu.Lock()
	p.heartbeats[host] = 0
	p.metrics.heartbeatMisses.WithLabelValues(host).Set(0)
	p.heartbeatMu.Unlock()

	p.metrics.reconnects.Inc()
	log.WithField("host", host).Infof("replaced connection after %d unanswered heartbeats", p.cfg.HeartbeatMaxMisses)
}
