package client

import (
	"time"

	"github.com/creasty/defaults"
)

// Options carries the library's configurable constants (§6), filled in
// with their spec-mandated defaults via struct tags the same way
// dubbo-go's consumer/provider config structs do.
type Options struct {
	// IdleTimeout is how long a connection may sit idle before a
	// heartbeat is sent.
	IdleTimeout time.Duration `default:"60s"`

	// HeartbeatCheckInterval is how often the heartbeat task wakes.
	HeartbeatCheckInterval time.Duration `default:"30ms"`

	// HeartbeatMaxMisses forces a reconnect after this many unanswered
	// heartbeats.
	HeartbeatMaxMisses int `default:"3"`

	// SelectPollInterval governs how quickly a newly opened connection
	// joins the read fan-in on platforms without epoll; this
	// implementation's per-connection reader goroutine starts
	// immediately on connect, so this constant has no effect here
	// besides preserving the external interface's configurable-constant
	// set. See DESIGN.md for the §4.3.2 translation.
	SelectPollInterval time.Duration `default:"500ms"`

	// ApplicationName is embedded in consumer registrations.
	ApplicationName string `default:"dubbo-client-go"`
}

// NewOptions returns Options populated with the spec defaults.
func NewOptions() (*Options, error) {
	o := &Options{}
	if err := defaults.Set(o); err != nil {
		return nil, err
	}
	return o, nil
}
