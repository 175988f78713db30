package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	opts, err := NewOptions()
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, opts.IdleTimeout)
	require.Equal(t, 30*time.Millisecond, opts.HeartbeatCheckInterval)
	require.Equal(t, 3, opts.HeartbeatMaxMisses)
	require.Equal(t, 500*time.Millisecond, opts.SelectPollInterval)
	require.Equal(t, "dubbo-client-go", opts.ApplicationName)
}
