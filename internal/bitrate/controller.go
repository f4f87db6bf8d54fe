// If you are AI: This file implements the adaptive bitrate controller.
// Frame-loss telemetry in, occasional bitrate adjustments out; pure state otherwise.

package bitrate

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for the feedback loop. The decrease/increase pair is configurable
// because deployments tuned for the older 0.5/2.0 pair still exist.
const (
	DefaultPoorThreshold  = 5.0
	DefaultGoodThreshold  = 1.0
	DefaultDecreaseFactor = 0.8
	DefaultIncreaseFactor = 1.2
	DefaultStabilityMs    = 5000
	DefaultMinGood        = 3
	DefaultMinKbps        = 500
	DefaultMaxKbps        = 150000

	// adjustmentIntervalMs is the minimum spacing between checks and
	// between adjustments.
	adjustmentIntervalMs = 2000
)

// Options tunes a Controller. Zero fields take defaults.
type Options struct {
	PoorThreshold  float64
	GoodThreshold  float64
	DecreaseFactor float64
	IncreaseFactor float64
	StabilityMs    int
	MinGood        int
}

// fill replaces zero fields with the defaults.
func (o *Options) fill() {
	if o.PoorThreshold == 0 {
		o.PoorThreshold = DefaultPoorThreshold
	}
	if o.GoodThreshold == 0 {
		o.GoodThreshold = DefaultGoodThreshold
	}
	if o.DecreaseFactor == 0 {
		o.DecreaseFactor = DefaultDecreaseFactor
	}
	if o.IncreaseFactor == 0 {
		o.IncreaseFactor = DefaultIncreaseFactor
	}
	if o.StabilityMs == 0 {
		o.StabilityMs = DefaultStabilityMs
	}
	if o.MinGood == 0 {
		o.MinGood = DefaultMinGood
	}
}

// Controller adjusts the encoder bitrate from observed frame loss.
// It is polled by the data plane at a fixed cadence and returns a new
// bitrate only when an adjustment is due; it never fails.
type Controller struct {
	mu sync.Mutex

	currentKbps int
	baseKbps    int
	minKbps     int
	maxKbps     int

	opts Options

	frameLossPct    float64
	consecutiveGood int
	consecutivePoor int

	lastAdjustment time.Time
	lastPoor       time.Time
	lastCheck      time.Time

	now    func() time.Time
	logger *zap.Logger
}

// New creates a controller starting at initialKbps, clamped to [minKbps, maxKbps].
func New(initialKbps, minKbps, maxKbps int, opts Options, logger *zap.Logger) *Controller {
	opts.fill()
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		currentKbps: clamp(initialKbps, minKbps, maxKbps),
		baseKbps:    initialKbps,
		minKbps:     minKbps,
		maxKbps:     maxKbps,
		opts:        opts,
		now:         time.Now,
		logger:      logger.Named("bitrate"),
	}
	start := c.now()
	c.lastAdjustment = start
	c.lastPoor = start
	c.lastCheck = start
	return c
}

// SetClock replaces the controller's time source. Tests only.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	start := now()
	c.lastAdjustment = start
	c.lastPoor = start
	c.lastCheck = start
}

// Update records a frame-loss observation from the data plane.
// Negative loss readings from counter wrap or corrupt reports are clamped
// to zero and so count as a good interval.
func (c *Controller) Update(frameLossPct float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frameLossPct < 0 {
		frameLossPct = 0
	}
	c.frameLossPct = frameLossPct

	switch {
	case frameLossPct > c.opts.PoorThreshold:
		c.consecutivePoor++
		c.consecutiveGood = 0
		c.lastPoor = c.now()
	case frameLossPct < c.opts.GoodThreshold:
		c.consecutiveGood++
		c.consecutivePoor = 0
	default:
		// Stable band: hold the current bitrate.
		c.consecutiveGood = 0
		c.consecutivePoor = 0
	}
}

// NextBitrate returns a new bitrate in kbps when an adjustment is due,
// or 0 when the current bitrate should be held.
func (c *Controller) NextBitrate() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastCheck) < adjustmentIntervalMs*time.Millisecond {
		return 0
	}
	c.lastCheck = now

	var next int
	switch {
	case c.frameLossPct > c.opts.PoorThreshold:
		if now.Sub(c.lastAdjustment) < adjustmentIntervalMs*time.Millisecond {
			return 0
		}
		next = clamp(int(math.Round(float64(c.currentKbps)*c.opts.DecreaseFactor)), c.minKbps, c.maxKbps)
		if next == c.currentKbps {
			return 0
		}
		c.logger.Info("poor network, decreasing bitrate",
			zap.Float64("loss_pct", c.frameLossPct),
			zap.Int("from_kbps", c.currentKbps),
			zap.Int("to_kbps", next))

	case c.frameLossPct < c.opts.GoodThreshold:
		if c.consecutiveGood < c.opts.MinGood {
			return 0
		}
		if now.Sub(c.lastPoor) < time.Duration(c.opts.StabilityMs)*time.Millisecond {
			return 0
		}
		if now.Sub(c.lastAdjustment) < adjustmentIntervalMs*time.Millisecond {
			return 0
		}
		next = clamp(int(math.Round(float64(c.currentKbps)*c.opts.IncreaseFactor)), c.minKbps, c.maxKbps)
		if next == c.currentKbps {
			return 0
		}
		c.logger.Info("good network, increasing bitrate",
			zap.Float64("loss_pct", c.frameLossPct),
			zap.Int("from_kbps", c.currentKbps),
			zap.Int("to_kbps", next))

	default:
		return 0
	}

	c.currentKbps = next
	c.lastAdjustment = now
	c.consecutiveGood = 0
	c.consecutivePoor = 0
	return next
}

// Reset rebases the controller on a new bitrate, typically after the
// encoder is reconfigured for a display change.
func (c *Controller) Reset(baseKbps int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.baseKbps = baseKbps
	c.currentKbps = clamp(baseKbps, c.minKbps, c.maxKbps)
	c.frameLossPct = 0
	c.consecutiveGood = 0
	c.consecutivePoor = 0

	now := c.now()
	c.lastAdjustment = now
	c.lastPoor = now
	c.lastCheck = now
}

// Current returns the bitrate the controller currently targets.
func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentKbps
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
