package engine

import (
	"vpnengine/common"
	"vpnengine/connection"
	"vpnengine/session"
	"vpnengine/types"
)

// forwardConnectionEvents pumps connection manager events into the
// execution context, preserving emission order.
func (e *Engine) forwardConnectionEvents() {
	for {
		select {
		case ev, ok := <-e.deps.Connection.Events():
			if !ok {
				return
			}
			if !e.post(func() { e.handleConnectionEvent(ev) }) {
				return
			}
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) handleConnectionEvent(ev connection.Event) {
	switch ev.Kind {
	case connection.EventConnecting:
		e.state.SetConnecting(e.lastLocation)
	case connection.EventReconnecting:
		e.onReconnecting()
	case connection.EventConnected:
		e.onConnected(ev)
	case connection.EventDisconnected:
		e.onDisconnected()
	case connection.EventError:
		e.onConnectError(ev)
	case connection.EventInterfaceUpdated:
		e.deps.Firewall.SetInterfaceToSkip(ev.Interface)
		e.reapplyFirewallIfActive()
	case connection.EventConnectedToIP:
		common.LogInfo("connecting endpoint %s", ev.IP)
		if e.exceptions.SetConnectingIP(ev.IP) {
			e.reapplyFirewallIfActive()
		}
	case connection.EventRequestUsername:
		e.answerUsernameRequest(ev.ConfigFile)
	case connection.EventRequestPassword:
		e.answerPasswordRequest(ev.ConfigFile)
	case connection.EventRequestPrivKeyPassword:
		e.answerPrivKeyRequest(ev.ConfigFile)
	case connection.EventStatisticsUpdated:
		e.deps.Notifier.OnStatisticsUpdated(ev.BytesIn, ev.BytesOut)
	case connection.EventProtocolPortChanged:
		e.deps.Notifier.OnProtocolPortChanged(ev.Protocol, ev.Port)
	case connection.EventInternetConnectivity:
		e.deps.Notifier.OnInternetConnectivityChanged(ev.Online)
	case connection.EventWireGuardKeyLimit:
		e.deps.Notifier.OnWireGuardKeyLimit()
	default:
		common.LogDebug("unhandled connection event %d", ev.Kind)
	}
}

// answerUsernameRequest replies from stored credentials when possible,
// otherwise surfaces the prompt.
func (e *Engine) answerUsernameRequest(configFile string) {
	if e.deps.Credentials != nil {
		if creds, err := e.deps.Credentials.GetAuthCredentials(configFile); err == nil && creds.Username != "" {
			e.deps.Connection.ContinueWithUsernameAndPassword(creds.Username, creds.Password)
			return
		}
	}
	e.deps.Notifier.OnRequestUsername(configFile)
}

func (e *Engine) answerPasswordRequest(configFile string) {
	if e.deps.Credentials != nil {
		if creds, err := e.deps.Credentials.GetAuthCredentials(configFile); err == nil && creds.Password != "" {
			e.deps.Connection.ContinueWithPassword(creds.Password)
			return
		}
	}
	e.deps.Notifier.OnRequestPassword(configFile)
}

func (e *Engine) answerPrivKeyRequest(configFile string) {
	if e.deps.Credentials != nil {
		if pkp, err := e.deps.Credentials.GetPrivKeyPassword(configFile); err == nil && pkp != "" {
			e.deps.Connection.ContinueWithPrivKeyPassword(pkp)
			return
		}
	}
	e.deps.Notifier.OnRequestPrivKeyPassword(configFile)
}

// forwardEmergencyEvents pumps the emergency controller's events; they
// drive the emergency state machine only and never touch the primary.
func (e *Engine) forwardEmergencyEvents() {
	for {
		select {
		case ev, ok := <-e.deps.Emergency.Events():
			if !ok {
				return
			}
			if !e.post(func() { e.handleEmergencyEvent(ev) }) {
				return
			}
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) handleEmergencyEvent(ev connection.Event) {
	switch ev.Kind {
	case connection.EventConnecting, connection.EventReconnecting:
		e.emergencyState.SetConnecting(types.LocationID{})
	case connection.EventConnected:
		e.emergencyState.SetConnected(types.LocationID{})
	case connection.EventDisconnected:
		e.emergencyState.SetDisconnected(types.DisconnectedByUser, types.NoConnectError)
	case connection.EventError:
		e.emergencyState.SetDisconnected(types.DisconnectedWithError, ev.Err)
	default:
		common.LogDebug("unhandled emergency event %d", ev.Kind)
	}
}

// forwardSessionEvents pumps session/API layer events.
func (e *Engine) forwardSessionEvents() {
	for {
		select {
		case ev, ok := <-e.deps.Session.Events():
			if !ok {
				return
			}
			if !e.post(func() { e.handleSessionEvent(ev) }) {
				return
			}
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) handleSessionEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventHostIPsChanged:
		if changed := e.exceptions.SetAPIHosts(ev.IPs); changed {
			e.reapplyFirewallIfActive()
		}
	case session.EventServerCredentialsFetched:
		e.onServerCredentialsFetched(ev.Token, ev.Success)
	case session.EventLoginFailed:
		e.deps.Notifier.OnLoginError(ev.Reason)
	case session.EventSessionUpdated:
		e.deps.Notifier.OnSessionUpdated()
		if !e.wasLoggedIn && e.deps.Session.IsLoggedIn() {
			e.wasLoggedIn = true
			e.deps.Notifier.OnLoginFinished()
		}
	case session.EventSessionDeleted:
		// The account was revoked server-side; behave like a sign-out
		// that drops the firewall.
		common.LogWarn("session deleted: %s", ev.Reason)
		e.wasLoggedIn = false
		e.deps.Notifier.OnSessionDeleted()
		e.signOut(false)
	case session.EventLocationsUpdated:
		if changed := e.exceptions.SetLocationPingIPs(e.deps.Locations.PingIPs()); changed {
			e.reapplyFirewallIfActive()
		}
		if changed := e.exceptions.SetCustomConfigPingIPs(e.deps.Locations.CustomConfigPingIPs()); changed {
			e.reapplyFirewallIfActive()
		}
		e.deps.Notifier.OnLocationsUpdated()
	case session.EventStaticIPsUpdated:
		e.deps.Notifier.OnStaticIPsUpdated()
	case session.EventNotificationsUpdated:
		e.deps.Notifier.OnNotificationsUpdated()
	case session.EventReadyForLogin:
		// Consumed by the presentation layer via its own session view.
	default:
		common.LogDebug("unhandled session event %d", ev.Kind)
	}
}
