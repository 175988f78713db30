package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteWithWeightUniformWhenNoWeights(t *testing.T) {
	state := &interfaceState{hosts: []string{"a:1", "b:1", "c:1"}}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		host, err := routeWithWeight("iface", state)
		require.NoError(t, err)
		seen[host] = true
	}
	require.Len(t, seen, 3)
}

func TestRouteWithWeightRespectsConfiguredWeight(t *testing.T) {
	// host "heavy" has overwhelming weight; over many draws it must
	// dominate but "light" must still be reachable.
	state := &interfaceState{
		hosts:   []string{"heavy:1", "light:1"},
		weights: map[string]int{"heavy:1": 999, "light:1": 1},
	}
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		host, err := routeWithWeight("iface", state)
		require.NoError(t, err)
		counts[host]++
	}
	require.Greater(t, counts["heavy:1"], counts["light:1"])
}

func TestRouteWithWeightDefaultsUnlistedHostTo100(t *testing.T) {
	state := &interfaceState{
		hosts:   []string{"a:1", "b:1"},
		weights: map[string]int{"a:1": 100},
	}
	// b:1 has no explicit weight entry; must still be selectable.
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		host, err := routeWithWeight("iface", state)
		require.NoError(t, err)
		seen[host] = true
	}
	require.True(t, seen["a:1"])
	require.True(t, seen["b:1"])
}

func TestRouteWithWeightNoProviders(t *testing.T) {
	_, err := routeWithWeight("iface", &interfaceState{})
	require.Error(t, err)
}
