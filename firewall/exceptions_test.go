package firewall

import (
	"reflect"
	"testing"

	"vpnengine/types"
)

func TestExceptions_ChangedSemantics(t *testing.T) {
	e := NewExceptions()

	if changed := e.SetAPIHosts([]string{"1.2.3.4", "5.6.7.8"}); !changed {
		t.Error("first SetAPIHosts should report changed")
	}
	if changed := e.SetAPIHosts([]string{"1.2.3.4", "5.6.7.8"}); changed {
		t.Error("identical SetAPIHosts should not report changed")
	}
	if changed := e.SetAPIHosts([]string{"5.6.7.8", "1.2.3.4"}); changed {
		t.Error("reordered SetAPIHosts should not report changed")
	}
	if changed := e.SetAPIHosts([]string{"1.2.3.4"}); !changed {
		t.Error("shrinking SetAPIHosts should report changed")
	}

	// Overlap with another category: adding a DNS server already present
	// as an API host leaves the union unchanged.
	if changed := e.SetDNSServers([]string{"1.2.3.4"}); changed {
		t.Error("DNS server already covered by API hosts should not report changed")
	}
	if changed := e.SetDNSServers([]string{"9.9.9.9"}); !changed {
		t.Error("new DNS server should report changed")
	}
}

func TestExceptions_Postures(t *testing.T) {
	e := NewExceptions()
	e.SetAPIHosts([]string{"10.0.0.1"})
	e.SetDNSServers([]string{"8.8.8.8"})
	e.SetConnectingIP("100.64.0.1")
	e.SetLocationPingIPs([]string{"172.16.0.1"})
	e.SetCustomRemoteIP("203.0.113.7")
	e.SetProxy(types.ProxySettings{Address: "192.168.1.5:8080"})

	pre := e.ForPreConnect()
	wantPre := []string{"10.0.0.1", "100.64.0.1", "172.16.0.1", "192.168.1.5", "203.0.113.7", "8.8.8.8"}
	if !reflect.DeepEqual(pre, wantPre) {
		t.Errorf("pre-connect union = %v, want %v", pre, wantPre)
	}

	conn := e.ForConnected()
	wantConn := []string{"10.0.0.1", "192.168.1.5", "8.8.8.8"}
	if !reflect.DeepEqual(conn, wantConn) {
		t.Errorf("connected union = %v, want %v", conn, wantConn)
	}
}

func TestExceptions_ClearCategory(t *testing.T) {
	e := NewExceptions()
	e.SetCustomRemoteIP("203.0.113.7")
	if changed := e.SetCustomRemoteIP(""); !changed {
		t.Error("clearing a populated category should report changed")
	}
	if changed := e.SetCustomRemoteIP(""); changed {
		t.Error("clearing an empty category should not report changed")
	}
	if got := e.ForPreConnect(); len(got) != 0 {
		t.Errorf("union should be empty, got %v", got)
	}
}

func TestExceptions_ProxyHostParsing(t *testing.T) {
	e := NewExceptions()
	e.SetProxy(types.ProxySettings{Address: "proxy.example.com"})
	if got := e.ForConnected(); !reflect.DeepEqual(got, []string{"proxy.example.com"}) {
		t.Errorf("got %v", got)
	}
	if changed := e.SetProxy(types.ProxySettings{}); !changed {
		t.Error("removing the proxy should report changed")
	}
}
