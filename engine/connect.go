package engine

import (
	"context"
	"net"

	"github.com/google/uuid"

	"vpnengine/common"
	"vpnengine/connection"
	"vpnengine/connectstate"
	"vpnengine/helper"
	"vpnengine/settings"
	"vpnengine/types"
)

// connectClick handles an accepted connect command on the execution
// context.
func (e *Engine) connectClick(target types.LocationID, override *types.ConnectionSettings) {
	if e.deps.PacketSizer != nil {
		e.deps.PacketSizer.EarlyStop()
	}
	if !e.deps.Connection.IsDisconnected() {
		// Reconnect: tear the current tunnel down and let the
		// disconnected handler re-run the connect with the new target.
		common.LogInfo("connect while active, reconnecting to %s", target)
		e.intent = pendingIntent{kind: intentReconnect, target: target, settings: override}
		e.userDisconnect = true
		e.state.SetDisconnecting()
		e.deps.Connection.ClickDisconnect()
		return
	}
	e.overrideSettings = override
	e.authRetried = false
	e.refetchToken = uuid.Nil
	e.doConnect(target)
}

// doConnect runs the connect protocol against target. It is entered
// from a fresh connect, from the reconnect branch of the disconnected
// handler, and from a credential-refetch retry.
func (e *Engine) doConnect(target types.LocationID) {
	if e.blockConnect.Load() && !target.IsCustomConfig() {
		common.LogWarn("connect to %s blocked", target)
		e.state.SetDisconnected(types.DisconnectedWithError, types.ConnectionBlocked)
		e.refreshIP()
		return
	}

	info, ok := e.deps.Locations.Resolve(target)
	if !ok {
		common.LogError("connect target %s does not exist", target)
		e.state.SetDisconnected(types.DisconnectedWithError, types.LocationNotExist)
		return
	}
	if !info.HasSelectedNode {
		common.LogError("connect target %s has no active nodes", target)
		e.state.SetDisconnected(types.DisconnectedWithError, types.LocationNoActiveNodes)
		return
	}

	e.lastLocation = target
	e.userDisconnect = false
	e.state.SetConnecting(target)

	// Custom configs may point at a hostname; resolve it now so the
	// firewall can allow the endpoint before the tunnel exists.
	// Resolution is best effort: connect proceeds on failure.
	if target.IsCustomConfig() && info.RemoteHost != "" {
		if changed := e.exceptions.SetCustomRemoteIP(e.resolveRemote(info.RemoteHost)); changed {
			e.reapplyFirewallIfActive()
		}
	}

	st := e.currentSettings()
	if st.Firewall.Mode == settings.FirewallModeAutomatic &&
		st.Firewall.When == settings.FirewallBeforeConnection &&
		!e.deps.Firewall.ActualState() {
		e.enableFirewall(e.exceptions.ForPreConnect())
	}

	cs := st.ConnectionFor(e.currentNetwork)
	if e.overrideSettings != nil {
		cs = *e.overrideSettings
		e.overrideSettings = nil
	}

	params := connection.ConnectParams{
		Location:         target,
		Settings:         cs,
		Credentials:      e.credentialsFor(target, cs),
		ProxySettings:    st.Proxy,
		PacketSize:       st.PacketSize,
		CustomConfigPath: info.CustomConfigPath,
	}
	e.deps.Connection.ClickConnect(params)
}

// resolveRemote returns the IP for host, resolving with a bounded
// lookup when it is not already a literal. Empty on failure.
func (e *Engine) resolveRemote(host string) string {
	if ip := net.ParseIP(host); ip != nil {
		return host
	}
	ctx, cancel := context.WithTimeout(context.Background(), common.DNSLookupTimeout)
	defer cancel()
	addrs, err := e.deps.ResolveHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		common.LogWarn("resolving custom remote %s failed: %v", host, err)
		return ""
	}
	return addrs[0]
}

// credentialsFor chooses the tunnel credentials for the attempt.
func (e *Engine) credentialsFor(target types.LocationID, cs types.ConnectionSettings) connection.Credentials {
	if target.IsCustomConfig() {
		if e.deps.Credentials == nil {
			return connection.Credentials{}
		}
		creds, err := e.deps.Credentials.GetAuthCredentials(target.ID)
		if err != nil {
			return connection.Credentials{}
		}
		pkp, _ := e.deps.Credentials.GetPrivKeyPassword(target.ID)
		return connection.Credentials{Username: creds.Username, Password: creds.Password, PrivateKeyPassword: pkp}
	}
	sc := e.deps.Session.ServerCredentials()
	if cs.Protocol.IsIkev2() {
		return connection.Credentials{Username: sc.Ikev2Username, Password: sc.Ikev2Password}
	}
	return connection.Credentials{Username: sc.OpenVPNUsername, Password: sc.OpenVPNPassword}
}

// disconnectClick handles an accepted disconnect command.
func (e *Engine) disconnectClick() {
	// A credential refetch scheduled by the auth handler pends while the
	// tunnel is already down; an explicit disconnect cancels it so the
	// completion cannot restart the connect.
	e.refetchToken = uuid.Nil
	e.authRetried = false
	if e.deps.Connection.IsDisconnected() &&
		e.state.CurrentState() == connectstate.StateDisconnected {
		common.LogDebug("disconnect ignored, already disconnected")
		return
	}
	e.userDisconnect = true
	e.state.SetDisconnecting()
	e.deps.Connection.ClickDisconnect()
}

// onReconnecting handles the manager failing over to another endpoint
// while still attempting. The tunnel is down again, so DNS and the
// broad pre-connect posture come back until the new endpoint is up.
func (e *Engine) onReconnecting() {
	if err := e.deps.Platform.ResetDNS(); err != nil {
		common.LogWarn("resetting DNS on reconnect: %v", err)
	}
	if e.deps.Firewall.ActualState() {
		st := e.currentSettings()
		e.deps.Firewall.On(e.exceptions.ConnectingIP(), e.exceptions.ForPreConnect(), st.AllowLANTraffic, e.deps.Connection.IsCustomConfig())
	}
	// Re-enter Connecting with the same target.
	e.state.SetReconnecting(e.lastLocation)
}

// onConnected handles the connection manager's connected event.
func (e *Engine) onConnected(ev connection.Event) {
	if e.state.CurrentState() != connectstate.StateConnecting {
		common.LogWarn("stray connected event while %v, ignored", e.state.CurrentState())
		return
	}
	st := e.currentSettings()
	tunnel := ev.TunnelInfo

	e.deps.Firewall.SetInterfaceToSkip(tunnel.AdapterInfo.Name)

	if st.Firewall.Mode == settings.FirewallModeAutomatic && st.Firewall.When == settings.FirewallAfterConnection {
		allowed := !e.deps.Connection.IsCustomConfig() || e.deps.Connection.IsAllowFirewallAfterConnection()
		if allowed && !e.deps.Firewall.ActualState() {
			e.enableFirewall(e.exceptions.ForConnected())
		} else if !allowed && e.deps.Firewall.ActualState() {
			e.disableFirewall()
		}
	}

	if changed := e.exceptions.SetDNSServers(tunnel.DNSServers); changed {
		e.reapplyFirewallIfActive()
	}
	if e.deps.Firewall.ActualState() {
		// Narrow to the connected posture.
		e.deps.Firewall.On(e.exceptions.ConnectingIP(), e.exceptions.ForConnected(), st.AllowLANTraffic, e.deps.Connection.IsCustomConfig())
	}

	if err := e.deps.Platform.DisableIPv6(); err != nil {
		common.LogWarn("disabling IPv6: %v", err)
	} else {
		e.ipv6Disabled = true
	}
	if err := e.deps.Platform.SetConnectedDNS(tunnel.AdapterInfo); err != nil {
		common.LogWarn("setting connected DNS: %v", err)
	}

	if !st.PacketSize.IsAutomatic && st.PacketSize.MTU > 0 {
		mtu := st.PacketSize.MTU - st.Advanced.MTUOffsetFor(e.deps.Connection.CurrentProtocol())
		if err := e.deps.Helper.ChangeMTU(tunnel.AdapterInfo.Name, mtu, false); err != nil {
			common.LogWarn("changing MTU to %d: %v", mtu, err)
		}
	}

	if e.deps.Connection.IsStaticIPsLocation() {
		if e.deps.Firewall.WhitelistPorts(e.deps.Connection.StaticIPPorts()) {
			e.portsWhitelisted = true
		}
	}

	status := helper.ConnectStatus{
		Connected:        true,
		TerminateSockets: st.TerminateSockets,
		AllowLAN:         st.AllowLANTraffic,
		DefaultAdapter:   tunnel.DefaultAdapter,
		VPNAdapter:       tunnel.AdapterInfo,
		ConnectedIP:      tunnel.ConnectedIP,
		Protocol:         e.deps.Connection.CurrentProtocol(),
	}
	if err := e.deps.Helper.SendConnectStatus(status); err != nil {
		common.LogError("helper connect status: %v", err)
		e.deps.Notifier.OnSplitTunnelingStartFailed()
	}
	if e.deps.Sharing != nil {
		e.deps.Sharing.OnConnectedToVPN()
	}

	e.state.SetConnected(e.lastLocation)
	e.refreshIP()

	// Custom configs connect without a session; retry login in the
	// background so account state catches up.
	if !e.deps.Session.IsLoggedIn() && !e.deps.Connection.IsCustomConfig() {
		e.deps.Session.FetchSession()
	}
}

// onConnectError handles a fatal connect error from the manager.
func (e *Engine) onConnectError(ev connection.Event) {
	common.LogError("connect error: %v %s", ev.Err, ev.CustomError)
	e.restoreAfterDisconnect()

	switch ev.Err {
	case types.AuthError:
		e.handleAuthError()
	case types.PrivKeyPasswordError:
		configName := e.deps.Connection.CustomConfigFilename()
		if e.deps.Credentials != nil {
			e.deps.Credentials.RemovePrivKeyPassword(configName)
		}
		e.state.SetDisconnected(types.DisconnectedWithError, types.PrivKeyPasswordError)
		e.deps.Notifier.OnRequestPrivKeyPassword(configName)
	default:
		e.state.SetDisconnected(types.DisconnectedWithError, ev.Err)
	}
	e.refreshIP()
}

// handleAuthError recovers from an authentication failure once per
// attempt by refetching server credentials and retrying; a repeat is
// surfaced to the caller.
func (e *Engine) handleAuthError() {
	if e.deps.Connection.IsCustomConfig() {
		// Stored credentials were wrong; discard and ask again.
		configName := e.deps.Connection.CustomConfigFilename()
		if e.deps.Credentials != nil {
			e.deps.Credentials.RemoveCredentials(configName)
		}
		e.state.SetDisconnected(types.DisconnectedWithError, types.AuthError)
		e.deps.Notifier.OnRequestUsername(configName)
		return
	}
	if e.authRetried {
		common.LogError("auth error on retried attempt, surfacing")
		e.state.SetDisconnected(types.DisconnectedWithError, types.AuthError)
		return
	}
	// Session may have been banned or revoked; refresh it in parallel
	// with the credential refetch.
	e.deps.Session.FetchSession()
	e.refetchToken = uuid.New()
	e.state.SetDisconnected(types.DisconnectedItself, types.NoConnectError)
	common.LogInfo("auth error, refetching server credentials (token %s)", e.refetchToken)
	e.deps.Session.FetchServerCredentials(e.refetchToken)
}

// onServerCredentialsFetched completes a pending credential refetch.
func (e *Engine) onServerCredentialsFetched(token uuid.UUID, success bool) {
	if token != e.refetchToken {
		common.LogDebug("stale credential refetch %s, ignored", token)
		return
	}
	e.refetchToken = uuid.Nil
	if !success {
		common.LogError("credential refetch failed")
		e.state.SetDisconnected(types.DisconnectedWithError, types.CredentialRefetchFailed)
		e.deps.Notifier.OnRequestUsername("")
		return
	}
	e.authRetried = true
	e.doConnect(e.lastLocation)
}

// onDisconnected handles the manager's disconnected event and branches
// on the pending intent.
func (e *Engine) onDisconnected() {
	e.restoreAfterDisconnect()
	if e.deps.Sharing != nil {
		e.deps.Sharing.OnDisconnectedFromVPN()
	}

	intent := e.intent
	e.intent = pendingIntent{}

	switch intent.kind {
	case intentSignOut:
		e.state.SetDisconnected(types.DisconnectedByUser, types.NoConnectError)
		e.finishSignOut(intent.keepFirewall)
	case intentReconnect:
		e.state.SetDisconnected(types.DisconnectedByUser, types.NoConnectError)
		e.overrideSettings = intent.settings
		e.authRetried = false
		e.refetchToken = uuid.Nil
		e.doConnect(intent.target)
	default:
		reason := types.DisconnectedItself
		if e.userDisconnect {
			reason = types.DisconnectedByUser
		}
		// A disconnect that is part of a credential retry must keep the
		// Disconnected(internal) state set by the auth handler.
		if e.refetchToken != uuid.Nil {
			return
		}
		e.state.SetDisconnected(reason, types.NoConnectError)
		st := e.currentSettings()
		if e.userDisconnect && st.Firewall.Mode == settings.FirewallModeAutomatic {
			e.disableFirewall()
		}
		e.refreshIP()
	}
}

// restoreAfterDisconnect undoes the per-connection OS and firewall
// state. Each step is independently idempotent.
func (e *Engine) restoreAfterDisconnect() {
	st := e.currentSettings()
	e.deps.Session.SetProxySettings(st.Proxy)
	if err := e.deps.Platform.ResetDNS(); err != nil {
		common.LogWarn("resetting DNS: %v", err)
	}
	e.deps.Firewall.SetInterfaceToSkip("")
	if e.portsWhitelisted {
		e.deps.Firewall.DeleteWhitelistPorts()
		e.portsWhitelisted = false
	}
	// The tunnel resolvers and the endpoint IPs belong to the finished
	// connection only; the reapply below drops them from both postures.
	e.exceptions.SetDNSServers(nil)
	e.exceptions.SetConnectingIP("")
	e.exceptions.SetCustomRemoteIP("")
	if e.deps.Firewall.ActualState() {
		e.deps.Firewall.On(e.exceptions.ConnectingIP(), e.exceptions.ForPreConnect(), st.AllowLANTraffic, e.deps.Connection.IsCustomConfig())
	}
	if e.ipv6Disabled {
		if err := e.deps.Platform.RestoreIPv6(); err != nil {
			common.LogWarn("restoring IPv6: %v", err)
		}
		e.ipv6Disabled = false
	}
}

func (e *Engine) refreshIP() {
	if e.deps.IPMonitor != nil {
		e.deps.IPMonitor.RefreshIP()
	}
}

// applySettings diff-applies a new settings document.
func (e *Engine) applySettings(next settings.EngineSettings) {
	prev := e.currentSettings()
	diff := settings.Compare(prev, next)
	e.settingsMu.Lock()
	e.settings = next
	e.settingsMu.Unlock()
	if !diff.Any() {
		return
	}

	if diff.Proxy {
		e.deps.Session.SetProxySettings(next.Proxy)
		if changed := e.exceptions.SetProxy(next.Proxy); changed {
			e.reapplyFirewallIfActive()
		}
	}
	if diff.PacketSize {
		if e.deps.PacketSizer != nil {
			e.deps.PacketSizer.SetPacketSize(next.PacketSize)
		}
		e.deps.Connection.SetPacketSize(next.PacketSize)
		e.deps.Notifier.OnPacketSizeChanged(next.PacketSize)
	}
	if diff.Connection && e.state.CurrentState() == connectstate.StateDisconnected {
		ports := e.deps.Session.PortMap()[next.Connection.Protocol]
		e.deps.Connection.UpdateConnectionSettings(next.Connection, ports)
	}
	if diff.ConnectedDNS {
		var policyServers []string
		if next.ConnectedDNS.Type == settings.ConnectedDNSCustom && next.ConnectedDNS.Upstream != "" {
			policyServers = []string{next.ConnectedDNS.Upstream}
		}
		if changed := e.exceptions.SetDNSPolicyServers(policyServers); changed {
			e.reapplyFirewallIfActive()
		}
		if e.state.CurrentState() == connectstate.StateConnected {
			e.deps.Connection.SetConnectedDNSInfo(policyServers)
		}
	}
	if diff.MACSpoofing {
		common.LogInfo("mac spoofing changed (enabled=%t interface=%s)",
			next.MACSpoofing.Enabled, next.MACSpoofing.Interface)
	}
	if diff.UpdateChannel {
		common.LogInfo("update channel changed to %q", next.UpdateChannel)
	}
	if diff.AllowLAN {
		e.reapplyFirewallIfActive()
	}
	if diff.Firewall {
		switch next.Firewall.Mode {
		case settings.FirewallModeAlwaysOn:
			if !e.deps.Firewall.ActualState() {
				e.enableFirewall(e.exceptions.ForPreConnect())
			}
		case settings.FirewallModeAutomatic:
			if prev.Firewall.Mode == settings.FirewallModeAlwaysOn &&
				e.state.CurrentState() == connectstate.StateDisconnected {
				e.disableFirewall()
			}
		}
	}
}

// signOut disconnects if needed and finishes the sign-out.
func (e *Engine) signOut(keepFirewallOn bool) {
	e.refetchToken = uuid.Nil
	if !e.deps.Connection.IsDisconnected() {
		e.intent = pendingIntent{kind: intentSignOut, keepFirewall: keepFirewallOn}
		e.state.SetDisconnecting()
		e.deps.Connection.ClickDisconnect()
		return
	}
	e.finishSignOut(keepFirewallOn)
}

func (e *Engine) finishSignOut(keepFirewallOn bool) {
	e.wasLoggedIn = false
	e.deps.Session.CancelAll()
	if !keepFirewallOn {
		e.deps.Firewall.EnableOnBoot(false, nil)
		e.disableFirewall()
	}
	e.deps.Notifier.OnSignOutFinished()
}
