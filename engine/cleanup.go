package engine

import (
	"context"

	"vpnengine/common"
	"vpnengine/helper"
	"vpnengine/settings"
	"vpnengine/store"
)

// exitFirewallAction is the outcome of the exit-policy matrix.
type exitFirewallAction int

const (
	// exitFirewallOff turns the firewall off and removes it from boot.
	exitFirewallOff exitFirewallAction = iota
	// exitFirewallOnBoot leaves the firewall up and persists it across
	// reboot.
	exitFirewallOnBoot
)

// exitPolicy evaluates the cleanup firewall matrix. firewallChecked
// false always turns the firewall off regardless of the other flags.
func exitPolicy(exitWithRestart, firewallChecked, alwaysOn, launchOnStart bool) exitFirewallAction {
	if !firewallChecked {
		return exitFirewallOff
	}
	if exitWithRestart {
		if launchOnStart || alwaysOn {
			return exitFirewallOnBoot
		}
		return exitFirewallOff
	}
	if alwaysOn {
		return exitFirewallOnBoot
	}
	return exitFirewallOff
}

// Cleanup runs the ordered teardown exactly once and blocks until it
// completes. Subsequent calls return immediately. It must not be
// called from a Notifier callback, which runs on the execution context
// the teardown needs.
func (e *Engine) Cleanup(exitWithRestart, firewallChecked, alwaysOn, launchOnStart bool) {
	e.cleanupOnce.Do(func() {
		done := make(chan struct{})
		posted := e.post(func() {
			defer close(done)
			e.cleanupImpl(exitWithRestart, firewallChecked, alwaysOn, launchOnStart)
		})
		if !posted {
			return
		}
		<-done
	})
}

func (e *Engine) cleanupImpl(exitWithRestart, firewallChecked, alwaysOn, launchOnStart bool) {
	common.LogInfo("cleanup started (restart=%t firewall=%t alwaysOn=%t launchOnStart=%t)",
		exitWithRestart, firewallChecked, alwaysOn, launchOnStart)

	e.persistSnapshot()
	e.deps.Session.CancelAll()
	if e.deps.PacketSizer != nil {
		e.deps.PacketSizer.EarlyStop()
	}

	// Bounded blocking teardown of both tunnels. The managers run on
	// their own goroutines so this does not re-enter the execution
	// context.
	ctx, cancel := context.WithTimeout(context.Background(), common.BlockingDisconnectTimeout)
	defer cancel()
	if !e.deps.Emergency.IsDisconnected() {
		if err := e.deps.Emergency.BlockingDisconnect(ctx); err != nil {
			common.LogWarn("emergency blocking disconnect: %v", err)
		}
	}
	if !e.deps.Connection.IsDisconnected() {
		if err := e.deps.Connection.BlockingDisconnect(ctx); err != nil {
			common.LogWarn("blocking disconnect: %v", err)
		}
	}
	e.restoreAfterDisconnect()

	if err := e.deps.Helper.SendConnectStatus(helper.ConnectStatus{Connected: false}); err != nil {
		common.LogWarn("helper connect status: %v", err)
	}
	if err := e.deps.Helper.SetSplitTunnelingSettings(false, false, nil, nil, nil); err != nil {
		common.LogWarn("clearing split tunneling: %v", err)
	}

	switch exitPolicy(exitWithRestart, firewallChecked, alwaysOn, launchOnStart) {
	case exitFirewallOnBoot:
		e.deps.Firewall.EnableOnBoot(true, e.exceptions.ForPreConnect())
	case exitFirewallOff:
		e.deps.Firewall.EnableOnBoot(false, nil)
		e.deps.Firewall.Off()
	}

	// Dependency order: sharing features before the connection manager
	// before the firewall controller.
	if e.deps.Sharing != nil {
		e.deps.Sharing.Stop()
	}

	e.cleanupFinished.Store(true)
	e.deps.Notifier.OnCleanupFinished()
	common.LogInfo("cleanup finished")
	close(e.quit)
}

// persistSnapshot writes the state that must survive restart.
func (e *Engine) persistSnapshot() {
	st := e.currentSettings()
	if e.deps.SettingsPath != "" {
		if err := settings.Save(st, e.deps.SettingsPath); err != nil {
			common.LogWarn("persisting settings: %v", err)
		}
	}
	if e.deps.Store == nil {
		return
	}
	if err := e.deps.Store.SetString(store.KeyLastLocation, e.lastLocation.String()); err != nil {
		common.LogWarn("persisting last location: %v", err)
	}
	firewallOnBoot := "0"
	if e.deps.Firewall.ActualState() {
		firewallOnBoot = "1"
	}
	if err := e.deps.Store.SetString(store.KeyFirewallOnBoot, firewallOnBoot); err != nil {
		common.LogWarn("persisting firewall state: %v", err)
	}
}
