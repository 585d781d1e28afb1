// Package packetsize detects the largest usable packet size toward a
// host so the tunnel MTU can be set below the path MTU.
package packetsize

import (
	"context"
	"sync"
	"time"

	"vpnengine/common"
	"vpnengine/types"
)

const (
	// MinMTU is the lowest MTU the search considers (IPv6 minimum).
	MinMTU = 1280
	// MaxMTU is the Ethernet default and the search upper bound.
	MaxMTU = 1500
)

// ProbeFunc reports whether a packet of the given size reaches host
// without fragmentation.
type ProbeFunc func(ctx context.Context, host string, size int) bool

// Controller runs at most one detection at a time in its own
// goroutine. Completion and changes are reported via callbacks, which
// are invoked from the detection goroutine.
type Controller struct {
	mu      sync.Mutex
	probe   ProbeFunc
	current types.PacketSize
	cancel  context.CancelFunc
	done    chan struct{}

	onChanged  func(types.PacketSize)
	onFinished func(detected bool)
}

// NewController returns a Controller using probe for measurements.
func NewController(probe ProbeFunc) *Controller {
	return &Controller{probe: probe}
}

// SetCallbacks installs the change/finish callbacks. Must be called
// before the first detection.
func (c *Controller) SetCallbacks(onChanged func(types.PacketSize), onFinished func(detected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChanged = onChanged
	c.onFinished = onFinished
}

// SetPacketSize installs an externally chosen packet size. Any running
// detection keeps going and may overwrite it when it finishes.
func (c *Controller) SetPacketSize(ps types.PacketSize) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = ps
}

// CurrentPacketSize returns the packet size last set or detected.
func (c *Controller) CurrentPacketSize() types.PacketSize {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// IsDetecting reports whether a detection is in flight.
func (c *Controller) IsDetecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}

// DetectAppropriatePacketSize starts an asynchronous binary search for
// the largest size that reaches host unfragmented. A detection already
// in flight is left alone.
func (c *Controller) DetectAppropriatePacketSize(host string) {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		common.LogDebug("packet size detection already running, ignoring request")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), common.PacketSizeDetectionTimeout)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	common.LogInfo("packet size detection started for %s", host)
	go c.run(ctx, cancel, done, host)
}

// EarlyStop aborts a running detection and waits for it to finish.
// The finish callback still fires, with detected == false.
func (c *Controller) EarlyStop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, host string) {
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.done = nil
		c.mu.Unlock()
		close(done)
	}()

	mtu, ok := c.search(ctx, host)

	c.mu.Lock()
	onChanged, onFinished := c.onChanged, c.onFinished
	changed := false
	if ok && c.current.MTU != mtu {
		c.current.MTU = mtu
		changed = true
	}
	result := c.current
	c.mu.Unlock()

	if ok {
		common.LogInfo("packet size detection finished: mtu %d", mtu)
	} else {
		common.LogInfo("packet size detection aborted")
	}
	if changed && onChanged != nil {
		onChanged(result)
	}
	if onFinished != nil {
		onFinished(ok)
	}
}

// search binary-searches [MinMTU, MaxMTU] for the largest size the
// probe confirms. It fails when even MinMTU gets no answer, which is
// indistinguishable from an offline host.
func (c *Controller) search(ctx context.Context, host string) (int, bool) {
	if ctx.Err() != nil {
		return 0, false
	}
	if !c.probe(ctx, host, MinMTU) {
		return 0, false
	}
	lo, hi := MinMTU, MaxMTU
	for lo < hi {
		if ctx.Err() != nil {
			return 0, false
		}
		mid := (lo + hi + 1) / 2
		if c.probe(ctx, host, mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if ctx.Err() != nil {
		return 0, false
	}
	return lo, true
}

// SleepProbe wraps a probe with a minimum spacing between attempts so
// rate-limited hosts are not flooded.
func SleepProbe(probe ProbeFunc, spacing time.Duration) ProbeFunc {
	return func(ctx context.Context, host string, size int) bool {
		ok := probe(ctx, host, size)
		select {
		case <-time.After(spacing):
		case <-ctx.Done():
		}
		return ok
	}
}
