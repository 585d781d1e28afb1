package firewall

import (
	"net"
	"sort"

	"vpnengine/types"
)

// Exceptions aggregates the host/IP categories that must stay reachable
// while the firewall blocks traffic. It is owned by the engine context
// and is not safe for concurrent use.
//
// Two postures are derived from the categories. Before and during
// connection every category is allowed; once the tunnel is up only the
// API hosts, the DNS servers and the proxy remain open and everything
// else routes through the tunnel.
type Exceptions struct {
	apiHosts            []string
	dnsServers          []string
	dnsPolicyServers    []string
	connectingIP        string
	customRemoteIP      string
	locationPingIPs     []string
	customConfigPingIPs []string
	proxyIP             string

	preConnect []string
	connected  []string
	dirty      bool
}

// NewExceptions returns an empty aggregator.
func NewExceptions() *Exceptions {
	return &Exceptions{dirty: true}
}

// SetAPIHosts replaces the API endpoint category. It returns true when
// the effective pre-connect union changed.
func (e *Exceptions) SetAPIHosts(hosts []string) bool {
	return e.update(func() { e.apiHosts = dedupe(hosts) })
}

// SetDNSServers replaces the OS DNS server category.
func (e *Exceptions) SetDNSServers(servers []string) bool {
	return e.update(func() { e.dnsServers = dedupe(servers) })
}

// SetDNSPolicyServers replaces the public resolvers implied by the
// connected-DNS policy.
func (e *Exceptions) SetDNSPolicyServers(servers []string) bool {
	return e.update(func() { e.dnsPolicyServers = dedupe(servers) })
}

// SetConnectingIP records the endpoint currently being negotiated with.
func (e *Exceptions) SetConnectingIP(ip string) bool {
	return e.update(func() { e.connectingIP = ip })
}

// SetCustomRemoteIP records the resolved remote of a custom config ("" clears).
func (e *Exceptions) SetCustomRemoteIP(ip string) bool {
	return e.update(func() { e.customRemoteIP = ip })
}

// SetLocationPingIPs replaces the latency-probe targets of the server list.
func (e *Exceptions) SetLocationPingIPs(ips []string) bool {
	return e.update(func() { e.locationPingIPs = dedupe(ips) })
}

// SetCustomConfigPingIPs replaces the probe targets of custom config locations.
func (e *Exceptions) SetCustomConfigPingIPs(ips []string) bool {
	return e.update(func() { e.customConfigPingIPs = dedupe(ips) })
}

// SetProxy records the proxy host from the given settings ("" when unset).
func (e *Exceptions) SetProxy(p types.ProxySettings) bool {
	host := ""
	if !p.IsEmpty() {
		host = proxyHost(p.Address)
	}
	return e.update(func() { e.proxyIP = host })
}

// ConnectingIP returns the currently recorded connecting endpoint.
func (e *Exceptions) ConnectingIP() string {
	return e.connectingIP
}

// ForPreConnect returns the sorted union of every category. This is the
// allow-list used while disconnected, connecting or disconnecting.
func (e *Exceptions) ForPreConnect() []string {
	e.recompute()
	return append([]string(nil), e.preConnect...)
}

// ForConnected returns the sorted union used once the tunnel is up:
// API hosts, DNS servers (policy included) and the proxy.
func (e *Exceptions) ForConnected() []string {
	e.recompute()
	return append([]string(nil), e.connected...)
}

func (e *Exceptions) update(apply func()) bool {
	e.recompute()
	prev := e.preConnect
	apply()
	e.dirty = true
	e.recompute()
	return !equalStrings(prev, e.preConnect)
}

func (e *Exceptions) recompute() {
	if !e.dirty {
		return
	}
	pre := make(map[string]struct{})
	for _, group := range [][]string{e.apiHosts, e.dnsServers, e.dnsPolicyServers, e.locationPingIPs, e.customConfigPingIPs} {
		for _, v := range group {
			pre[v] = struct{}{}
		}
	}
	for _, v := range []string{e.connectingIP, e.customRemoteIP, e.proxyIP} {
		if v != "" {
			pre[v] = struct{}{}
		}
	}
	conn := make(map[string]struct{})
	for _, group := range [][]string{e.apiHosts, e.dnsServers, e.dnsPolicyServers} {
		for _, v := range group {
			conn[v] = struct{}{}
		}
	}
	if e.proxyIP != "" {
		conn[e.proxyIP] = struct{}{}
	}
	e.preConnect = sortedKeys(pre)
	e.connected = sortedKeys(conn)
	e.dirty = false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// proxyHost strips an optional port from a proxy address.
func proxyHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
