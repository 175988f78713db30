package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-mesh/dubbo-client/internal/errs"
)

// providerURL is a parsed "dubbo://host:port/<interface>?k=v&..." (or
// "override://...") child node, per §4.4's URL-encoded children.
type providerURL struct {
	Scheme string
	Host   string // "host:port"
	Path   string
	Fields map[string]string
}

// parseProviderURL decodes one ZooKeeper child name into its URL parts,
// grounded on register.py's parse_url.
func parseProviderURL(raw string) (providerURL, error) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return providerURL{}, errs.Wrap(errs.ErrRegistry, "url-decode provider node %q: %v", raw, err)
	}
	u, err := url.Parse(decoded)
	if err != nil {
		return providerURL{}, errs.Wrap(errs.ErrRegistry, "parse provider node %q: %v", decoded, err)
	}
	fields := map[string]string{}
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			fields[k] = vs[0]
		}
	}
	return providerURL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   u.Path,
		Fields: fields,
	}, nil
}

// weightOf returns the configured weight for a host, defaulting to 100
// per register.py's "默认100" (default 100) comment.
func weightOf(fields map[string]string) int {
	w, ok := fields["weight"]
	if !ok {
		return 100
	}
	n, err := strconv.Atoi(w)
	if err != nil {
		return 100
	}
	return n
}

// buildConsumerURL composes this process's ephemeral consumer
// registration string: "consumer://<ip><path>?k=v&...", sorted by key,
// grounded on register.py's _register_consumer.
func buildConsumerURL(localIP, applicationName string, provider providerURL, pid int) string {
	fields := map[string]string{
		"application": applicationName,
		"category":    "consumers",
		"check":       "false",
		"connected":   "true",
		"dubbo":       provider.Fields["dubbo"],
		"interface":   provider.Fields["interface"],
		"methods":     provider.Fields["methods"],
		"pid":         strconv.Itoa(pid),
		"revision":    provider.Fields["revision"],
		"side":        "consumer",
		"timestamp":   strconv.FormatInt(time.Now().UnixMilli(), 10),
		"version":     provider.Fields["version"],
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("consumer://")
	b.WriteString(localIP)
	b.WriteString(provider.Path)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%s", k, fields[k])
	}
	return b.String()
}

func providersPath(iface string) string     { return "/dubbo/" + iface + "/providers" }
func consumersPath(iface string) string     { return "/dubbo/" + iface + "/consumers" }
func configuratorsPath(iface string) string { return "/dubbo/" + iface + "/configurators" }
