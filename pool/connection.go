package pool

import (
	"bufio"
	"io"
	"net"
	"time"

	"go.uber.org/atomic"

	"github.com/go-mesh/dubbo-client/dubbo"
	"github.com/go-mesh/dubbo-client/internal/errs"
	"github.com/go-mesh/dubbo-client/internal/log"
)

// readPhase is one of the three states a Connection's reader cycles
// through, per §4.3.5.
type readPhase int

const (
	phaseHeader readPhase = iota
	phaseNormalBody
	phaseErrorBody
)

// Connection owns one TCP socket and the single goroutine that reads
// from it. This is the Go-idiomatic stand-in for "a single reader task
// using an OS-level readiness primitive" (§4.3.2): each Connection gets
// its own blocked-on-Read goroutine rather than being registered with a
// hand-rolled epoll/select loop — the Go runtime's netpoller already
// multiplexes these goroutines onto OS threads.
type Connection struct {
	host string
	conn net.Conn
	r    *bufio.Reader

	lastActive atomic.Int64 // unix nanoseconds, read by the heartbeat sweep

	writeMu chan struct{} // 1-buffered semaphore serializing writes

	pool *Pool

	closed chan struct{}
}

// dial opens a new Connection to host ("ip:port") and starts its reader
// goroutine.
func dial(p *Pool, host string) (*Connection, error) {
	nc, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		return nil, errs.Wrap(errs.ErrProtocol, "dial %s: %v", host, err)
	}
	c := &Connection{
		host:    host,
		conn:    nc,
		r:       bufio.NewReaderSize(nc, 16*1024),
		writeMu: make(chan struct{}, 1),
		pool:    p,
		closed:  make(chan struct{}),
	}
	c.writeMu <- struct{}{}
	c.touch()
	go c.readLoop()
	return c, nil
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

func (c *Connection) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActive.Load()))
}

// write sends a fully-formed frame. Writes may interleave across
// concurrent callers per §4.3.3; the semaphore here only serializes
// individual frame writes against each other so one frame's bytes are
// never interleaved with another's on platforms whose send isn't atomic
// for the buffer sizes this library uses.
func (c *Connection) write(frame []byte) error {
	select {
	case <-c.writeMu:
	case <-c.closed:
		return errs.Wrap(errs.ErrProtocol, "write to closed connection %s", c.host)
	}
	defer func() { c.writeMu <- struct{}{} }()

	for len(frame) > 0 {
		n, err := c.conn.Write(frame)
		if err != nil {
			return errs.Wrap(errs.ErrProtocol, "write %s: %v", c.host, err)
		}
		frame = frame[n:]
	}
	c.touch()
	return nil
}

func (c *Connection) close() {
	select {
	case <-c.closed:
		return
	default:
		close(c.closed)
	}
	c.conn.Close()
}

// readLoop implements the §4.3.5 state machine: HEADER -> (NORMAL_BODY |
// ERROR_BODY | HEADER) -> HEADER, running for the lifetime of the
// connection. It is the only goroutine that ever reads from conn.
func (c *Connection) readLoop() {
	defer c.pool.forget(c)
	defer c.close()

	for {
		headerBuf := make([]byte, dubbo.HeaderLength)
		if _, err := io.ReadFull(c.r, headerBuf); err != nil {
			if err != io.EOF {
				log.WithField("host", c.host).Warnf("connection read error: %v", err)
			}
			return
		}
		c.touch()

		header, err := dubbo.ParseHeader(headerBuf)
		if err != nil {
			log.WithField("host", c.host).Warnf("protocol error: %v", err)
			return
		}

		switch header.Kind {
		case dubbo.KindHeartbeatRequest:
			if header.BodyLength > 0 {
				if _, err := io.CopyN(io.Discard, c.r, int64(header.BodyLength)); err != nil {
					return
				}
			}
			resp := dubbo.EncodeHeartbeatResponse(header.InvocationID)
			if err := c.write(resp); err != nil {
				log.WithField("host", c.host).Warnf("heartbeat response write failed: %v", err)
				return
			}

		case dubbo.KindHeartbeatResponse:
			c.pool.decHeartbeatMiss(c.host)
			if header.BodyLength > 0 {
				if _, err := io.CopyN(io.Discard, c.r, int64(header.BodyLength)); err != nil {
					return
				}
			}

		case dubbo.KindNormalResponse:
			body := make([]byte, header.BodyLength)
			if header.BodyLength > 0 {
				if _, err := io.ReadFull(c.r, body); err != nil {
					return
				}
			}
			if header.Status == dubbo.StatusOK {
				c.pool.deliverValue(header.InvocationID, body)
			} else {
				c.pool.deliverStatusError(header.InvocationID, header.Status, body)
			}
		}
	}
}
