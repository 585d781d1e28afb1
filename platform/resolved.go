package platform

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"vpnengine/common"
	"vpnengine/helper"
)

const (
	resolvedDest   = "org.freedesktop.resolve1"
	resolvedPath   = dbus.ObjectPath("/org/freedesktop/resolve1")
	resolvedIface  = "org.freedesktop.resolve1.Manager"
	ipv6SysctlPath = "/proc/sys/net/ipv6/conf/all/disable_ipv6"
)

// linkDNS matches the (iay) struct systemd-resolved expects in SetLinkDNS.
type linkDNS struct {
	Family  int32
	Address []byte
}

// Resolved implements Ops for Linux hosts running systemd-resolved.
// DNS is set per link over D-Bus so it reverts automatically if the
// process dies with the link still up.
type Resolved struct {
	mu          sync.Mutex
	conn        *dbus.Conn
	linkIndex   int
	savedIPv6   string
	changedIPv6 bool
}

// NewResolved returns a Resolved using a lazily opened system bus.
func NewResolved() *Resolved {
	return &Resolved{}
}

func (r *Resolved) bus() (*dbus.Conn, error) {
	if r.conn != nil {
		return r.conn, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, common.WrapError(err, "connecting to system bus")
	}
	r.conn = conn
	return conn, nil
}

// DisableIPv6 writes the all-interfaces sysctl, saving the prior value.
func (r *Resolved) DisableIPv6() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, err := os.ReadFile(ipv6SysctlPath)
	if err != nil {
		return common.WrapError(err, "reading ipv6 sysctl")
	}
	r.savedIPv6 = strings.TrimSpace(string(prev))
	if err := os.WriteFile(ipv6SysctlPath, []byte("1\n"), 0o644); err != nil {
		return common.WrapError(err, "disabling ipv6")
	}
	r.changedIPv6 = true
	common.LogInfo("IPv6 disabled (was %s)", r.savedIPv6)
	return nil
}

// RestoreIPv6 restores the sysctl saved by DisableIPv6. Calling it
// without a prior DisableIPv6 is a no-op.
func (r *Resolved) RestoreIPv6() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.changedIPv6 {
		return nil
	}
	if err := os.WriteFile(ipv6SysctlPath, []byte(r.savedIPv6+"\n"), 0o644); err != nil {
		return common.WrapError(err, "restoring ipv6")
	}
	r.changedIPv6 = false
	common.LogInfo("IPv6 restored to %s", r.savedIPv6)
	return nil
}

// SetConnectedDNS points resolved at the tunnel adapter's DNS servers
// and routes all domains (~.) through that link.
func (r *Resolved) SetConnectedDNS(adapter helper.AdapterInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, err := r.bus()
	if err != nil {
		return err
	}
	servers := make([]linkDNS, 0, len(adapter.DNS))
	for _, s := range adapter.DNS {
		ip := net.ParseIP(s)
		if ip == nil {
			return common.WrapError(fmt.Errorf("invalid DNS server %q", s), "setting connected DNS")
		}
		if v4 := ip.To4(); v4 != nil {
			servers = append(servers, linkDNS{Family: 2, Address: v4})
		} else {
			servers = append(servers, linkDNS{Family: 10, Address: ip.To16()})
		}
	}
	obj := conn.Object(resolvedDest, resolvedPath)
	if call := obj.Call(resolvedIface+".SetLinkDNS", 0, int32(adapter.IfIndex), servers); call.Err != nil {
		return common.WrapError(call.Err, "SetLinkDNS")
	}
	domains := []struct {
		Domain  string
		Routing bool
	}{{Domain: ".", Routing: true}}
	if call := obj.Call(resolvedIface+".SetLinkDomains", 0, int32(adapter.IfIndex), domains); call.Err != nil {
		return common.WrapError(call.Err, "SetLinkDomains")
	}
	r.linkIndex = adapter.IfIndex
	common.LogInfo("connected DNS set on link %d (%s)", adapter.IfIndex, adapter.Name)
	return nil
}

// ResetDNS reverts the link configured by SetConnectedDNS.
func (r *Resolved) ResetDNS() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linkIndex == 0 {
		return nil
	}
	conn, err := r.bus()
	if err != nil {
		return err
	}
	obj := conn.Object(resolvedDest, resolvedPath)
	if call := obj.Call(resolvedIface+".RevertLink", 0, int32(r.linkIndex)); call.Err != nil {
		return common.WrapError(call.Err, "RevertLink")
	}
	common.LogInfo("DNS reverted on link %d", r.linkIndex)
	r.linkIndex = 0
	return nil
}

// Close releases the D-Bus connection.
func (r *Resolved) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
