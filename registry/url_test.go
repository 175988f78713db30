package registry

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderURL(t *testing.T) {
	raw := url.QueryEscape("dubbo://10.0.0.5:20880/com.example.Greeter?dubbo=2.0.0&interface=com.example.Greeter&methods=sayHello&revision=1.0&version=1.0.0")
	pu, err := parseProviderURL(raw)
	require.NoError(t, err)
	require.Equal(t, "dubbo", pu.Scheme)
	require.Equal(t, "10.0.0.5:20880", pu.Host)
	require.Equal(t, "/com.example.Greeter", pu.Path)
	require.Equal(t, "com.example.Greeter", pu.Fields["interface"])
}

func TestWeightOfDefaultsTo100(t *testing.T) {
	require.Equal(t, 100, weightOf(map[string]string{}))
	require.Equal(t, 50, weightOf(map[string]string{"weight": "50"}))
	require.Equal(t, 100, weightOf(map[string]string{"weight": "not-a-number"}))
}

func TestBuildConsumerURLSortedQuery(t *testing.T) {
	provider := providerURL{
		Scheme: "dubbo",
		Host:   "10.0.0.5:20880",
		Path:   "/com.example.Greeter",
		Fields: map[string]string{
			"dubbo":     "2.0.0",
			"interface": "com.example.Greeter",
			"methods":   "sayHello",
			"revision":  "1.0",
			"version":   "1.0.0",
		},
	}
	consumer := buildConsumerURL("10.0.0.9", "my-app", provider, 4242)
	require.Contains(t, consumer, "consumer://10.0.0.9/com.example.Greeter?")

	// application must sort before category, which sorts before check, etc.
	appIdx := indexOf(consumer, "application=")
	categoryIdx := indexOf(consumer, "category=")
	checkIdx := indexOf(consumer, "check=")
	require.True(t, appIdx < categoryIdx)
	require.True(t, categoryIdx < checkIdx)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestPaths(t *testing.T) {
	require.Equal(t, "/dubbo/com.example.Greeter/providers", providersPath("com.example.Greeter"))
	require.Equal(t, "/dubbo/com.example.Greeter/consumers", consumersPath("com.example.Greeter"))
	require.Equal(t, "/dubbo/com.example.Greeter/configurators", configuratorsPath("com.example.Greeter"))
}
