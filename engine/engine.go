package engine

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"vpnengine/common"
	"vpnengine/connectstate"
	"vpnengine/firewall"
	"vpnengine/settings"
	"vpnengine/types"
)

// taskQueueSize bounds the serialized execution queue. It must leave
// room for collaborator events emitted while a cleanup task blocks the
// queue, so forwarders never stall teardown.
const taskQueueSize = 256

// intentKind tags the pending disconnect intent.
type intentKind int

const (
	intentNone intentKind = iota
	intentSignOut
	intentReconnect
)

// pendingIntent records why a disconnect was issued so the
// disconnected handler knows how to continue.
type pendingIntent struct {
	kind         intentKind
	keepFirewall bool                      // intentSignOut
	target       types.LocationID          // intentReconnect
	settings     *types.ConnectionSettings // intentReconnect, one-shot
}

// Engine is the connection orchestrator. All state mutations run on a
// single serialized execution context; public methods post tasks into
// it and may be called from any goroutine.
type Engine struct {
	deps Deps

	tasks chan func()
	quit  chan struct{}

	initialized     atomic.Bool
	cleanupFinished atomic.Bool
	blockConnect    atomic.Bool
	cleanupOnce     sync.Once

	settingsMu sync.RWMutex
	settings   settings.EngineSettings

	// Everything below is owned by the execution context.
	state          *connectstate.Controller
	emergencyState *connectstate.Controller
	exceptions     *firewall.Exceptions

	lastLocation     types.LocationID
	overrideSettings *types.ConnectionSettings
	intent           pendingIntent
	refetchToken     uuid.UUID
	authRetried      bool
	userDisconnect   bool
	ipv6Disabled     bool
	portsWhitelisted bool
	wasLoggedIn      bool
	currentNetwork   string
}

// New constructs an Engine with the given collaborators and initial
// settings. Call Start to begin processing.
func New(deps Deps, st settings.EngineSettings) *Engine {
	if deps.ResolveHost == nil {
		deps.ResolveHost = func(ctx context.Context, host string) ([]string, error) {
			return net.DefaultResolver.LookupHost(ctx, host)
		}
	}
	e := &Engine{
		deps:           deps,
		tasks:          make(chan func(), taskQueueSize),
		quit:           make(chan struct{}),
		settings:       st,
		state:          connectstate.NewController(),
		emergencyState: connectstate.NewController(),
		exceptions:     firewall.NewExceptions(),
	}
	e.state.SetListener(deps.Notifier.OnConnectStateChanged)
	e.emergencyState.SetListener(deps.Notifier.OnEmergencyConnectStateChanged)
	e.exceptions.SetProxy(st.Proxy)
	if deps.PacketSizer != nil {
		deps.PacketSizer.SetPacketSize(st.PacketSize)
		deps.PacketSizer.SetCallbacks(e.onPacketSizeChanged, e.onPacketSizeDetectionFinished)
	}
	return e
}

// Start launches the execution context and the collaborator event
// forwarders, then reports init finished.
func (e *Engine) Start() {
	go e.run()
	go e.forwardConnectionEvents()
	go e.forwardEmergencyEvents()
	go e.forwardSessionEvents()
	e.post(func() {
		e.initialized.Store(true)
		if e.currentSettings().Firewall.Mode == settings.FirewallModeAlwaysOn {
			e.enableFirewall(e.exceptions.ForPreConnect())
		}
		e.deps.Notifier.OnInitFinished()
	})
}

// run executes posted tasks strictly in FIFO order.
func (e *Engine) run() {
	for {
		select {
		case task := <-e.tasks:
			task()
			select {
			case <-e.quit:
				return
			default:
			}
		case <-e.quit:
			return
		}
	}
}

// post enqueues a task. It reports false once the engine has shut down.
func (e *Engine) post(task func()) bool {
	select {
	case <-e.quit:
		return false
	default:
	}
	select {
	case e.tasks <- task:
		return true
	case <-e.quit:
		return false
	}
}

// IsInitialized reports whether Start has completed. Safe from any
// goroutine.
func (e *Engine) IsInitialized() bool { return e.initialized.Load() }

// IsCleanupFinished reports whether Cleanup has completed. Safe from
// any goroutine.
func (e *Engine) IsCleanupFinished() bool { return e.cleanupFinished.Load() }

// SetBlockConnect administratively blocks or unblocks connects to
// non-custom-config targets (account expiry, abuse lock).
func (e *Engine) SetBlockConnect(block bool) { e.blockConnect.Store(block) }

// ConnectState returns the current primary connect state. Safe from
// any goroutine.
func (e *Engine) ConnectState() connectstate.Change { return e.state.Current() }

// EmergencyConnectState returns the current emergency state. Safe from
// any goroutine.
func (e *Engine) EmergencyConnectState() connectstate.Change {
	return e.emergencyState.Current()
}

func (e *Engine) currentSettings() settings.EngineSettings {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.settings
}

// Connect requests a connection to the target. A nil override uses the
// per-settings connection defaults; a non-nil override applies to this
// attempt only.
func (e *Engine) Connect(target types.LocationID, override *types.ConnectionSettings) {
	if !e.initialized.Load() {
		common.LogWarn("connect ignored, engine not initialized")
		return
	}
	e.post(func() { e.connectClick(target, override) })
}

// Disconnect requests an orderly teardown. A no-op when already
// disconnected.
func (e *Engine) Disconnect() {
	e.post(func() { e.disconnectClick() })
}

// SetSettings replaces the engine settings, applying each changed
// group to the narrowly affected subsystem.
func (e *Engine) SetSettings(next settings.EngineSettings) {
	e.post(func() { e.applySettings(next) })
}

// Login starts a session login.
func (e *Engine) Login(username, password, code2fa string) {
	e.post(func() { e.deps.Session.Login(username, password, code2fa) })
}

// SignOut tears down the session. The tunnel, if up, is disconnected
// first; the firewall is dropped unless keepFirewallOn is set.
func (e *Engine) SignOut(keepFirewallOn bool) {
	e.post(func() { e.signOut(keepFirewallOn) })
}

// EmergencyConnect starts the fallback tunnel that needs no session.
func (e *Engine) EmergencyConnect() {
	e.post(func() {
		if !e.initialized.Load() {
			e.emergencyState.SetDisconnected(types.DisconnectedItself, types.NoConnectError)
			return
		}
		e.emergencyState.SetConnecting(types.LocationID{})
		e.deps.Emergency.ClickConnect()
	})
}

// EmergencyDisconnect tears the fallback tunnel down.
func (e *Engine) EmergencyDisconnect() {
	e.post(func() {
		if e.deps.Emergency.IsDisconnected() {
			e.emergencyState.SetDisconnected(types.DisconnectedByUser, types.NoConnectError)
			return
		}
		e.emergencyState.SetDisconnecting()
		e.deps.Emergency.ClickDisconnect()
	})
}

// ContinueWithCredentials answers a username/password prompt. Empty
// input declines the prompt and disconnects. For custom configs the
// pair is persisted for subsequent attempts when save is set.
func (e *Engine) ContinueWithCredentials(username, password string, save bool) {
	e.post(func() {
		if username == "" && password == "" {
			e.disconnectClick()
			return
		}
		if save {
			e.storeCustomConfigCredentials(username, password)
		}
		e.deps.Connection.ContinueWithUsernameAndPassword(username, password)
	})
}

// ContinueWithPassword answers a password-only prompt. Empty input
// declines and disconnects.
func (e *Engine) ContinueWithPassword(password string, save bool) {
	e.post(func() {
		if password == "" {
			e.disconnectClick()
			return
		}
		if save {
			e.storeCustomConfigCredentials("", password)
		}
		e.deps.Connection.ContinueWithPassword(password)
	})
}

// ContinueWithPrivKeyPassword answers a private key passphrase prompt.
// Empty input declines and disconnects.
func (e *Engine) ContinueWithPrivKeyPassword(password string, save bool) {
	e.post(func() {
		if password == "" {
			e.disconnectClick()
			return
		}
		if save && e.deps.Credentials != nil && e.deps.Connection.IsCustomConfig() {
			if err := e.deps.Credentials.SetPrivKeyPassword(e.deps.Connection.CustomConfigFilename(), password); err != nil {
				common.LogWarn("storing private key passphrase: %v", err)
			}
		}
		e.deps.Connection.ContinueWithPrivKeyPassword(password)
	})
}

// SetCurrentNetwork records the network (SSID or wired id) the host is
// on; per-network connection settings apply on the next connect.
func (e *Engine) SetCurrentNetwork(network string) {
	e.post(func() { e.currentNetwork = network })
}

// SetNetworkOnline forwards underlying connectivity changes. Going
// offline aborts a running packet size detection, whose probes would
// otherwise only time out.
func (e *Engine) SetNetworkOnline(online bool) {
	if !online && e.deps.PacketSizer != nil {
		e.deps.PacketSizer.EarlyStop()
	}
	e.post(func() { e.deps.Notifier.OnInternetConnectivityChanged(online) })
}

// FirewallOn raises the firewall explicitly.
func (e *Engine) FirewallOn() {
	e.post(func() {
		exceptionSet := e.exceptions.ForPreConnect()
		if e.state.CurrentState() == connectstate.StateConnected {
			exceptionSet = e.exceptions.ForConnected()
		}
		e.enableFirewall(exceptionSet)
	})
}

// FirewallOff drops the firewall explicitly. Ignored while the policy
// is always-on.
func (e *Engine) FirewallOff() {
	e.post(func() {
		if e.currentSettings().Firewall.Mode == settings.FirewallModeAlwaysOn {
			common.LogWarn("firewall off ignored, policy is always-on")
			return
		}
		e.disableFirewall()
	})
}

// DetectPacketSize starts MTU detection toward host. Ignored while a
// connection is active.
func (e *Engine) DetectPacketSize(host string) {
	e.post(func() {
		if e.deps.PacketSizer == nil {
			return
		}
		if e.state.CurrentState() != connectstate.StateDisconnected {
			common.LogDebug("packet size detection ignored while %v", e.state.CurrentState())
			return
		}
		e.deps.PacketSizer.DetectAppropriatePacketSize(host)
	})
}

// StopPacketDetection aborts a running MTU detection.
func (e *Engine) StopPacketDetection() {
	if e.deps.PacketSizer != nil {
		e.deps.PacketSizer.EarlyStop()
	}
}

func (e *Engine) onPacketSizeChanged(ps types.PacketSize) {
	e.post(func() {
		e.settingsMu.Lock()
		e.settings.PacketSize = ps
		e.settingsMu.Unlock()
		e.deps.Connection.SetPacketSize(ps)
		e.deps.Notifier.OnPacketSizeChanged(ps)
	})
}

func (e *Engine) onPacketSizeDetectionFinished(detected bool) {
	e.post(func() { e.deps.Notifier.OnPacketSizeDetectionFinished(detected) })
}

func (e *Engine) storeCustomConfigCredentials(username, password string) {
	if e.deps.Credentials == nil || !e.deps.Connection.IsCustomConfig() {
		return
	}
	configName := e.deps.Connection.CustomConfigFilename()
	creds, _ := e.deps.Credentials.GetAuthCredentials(configName)
	if username != "" {
		creds.Username = username
	}
	creds.Password = password
	if err := e.deps.Credentials.SetAuthCredentials(configName, creds); err != nil {
		common.LogWarn("storing credentials for %s: %v", configName, err)
	}
}

// enableFirewall applies the firewall with the given exception set and
// reports the state change.
func (e *Engine) enableFirewall(exceptionSet []string) {
	st := e.currentSettings()
	wasOn := e.deps.Firewall.ActualState()
	e.deps.Firewall.On(e.exceptions.ConnectingIP(), exceptionSet, st.AllowLANTraffic, e.deps.Connection.IsCustomConfig())
	if !wasOn {
		e.deps.Notifier.OnFirewallStateChanged(true)
	}
}

func (e *Engine) disableFirewall() {
	if !e.deps.Firewall.ActualState() {
		return
	}
	e.deps.Firewall.Off()
	e.deps.Notifier.OnFirewallStateChanged(false)
}

// reapplyFirewallIfActive re-invokes the firewall with the posture
// matching the current state. Called after an exception category
// reported a change.
func (e *Engine) reapplyFirewallIfActive() {
	if !e.deps.Firewall.ActualState() {
		return
	}
	exceptionSet := e.exceptions.ForPreConnect()
	if e.state.CurrentState() == connectstate.StateConnected {
		exceptionSet = e.exceptions.ForConnected()
	}
	st := e.currentSettings()
	e.deps.Firewall.On(e.exceptions.ConnectingIP(), exceptionSet, st.AllowLANTraffic, e.deps.Connection.IsCustomConfig())
}
