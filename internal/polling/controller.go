// Package polling implements the closed-loop controller that tunes how often
// pawsync polls.
//
// After every cycle the controller is told how long the cycle took and
// whether it succeeded. It keeps a short history of durations and moves the
// interval multiplicatively: back off on failure, speed up when cycles are
// comfortably fast, slow down when they run long. Downstream entity
// saturation damps speed-ups and amplifies slow-downs.
package polling

import (
	"math"
	"sync"
	"time"
)

// Default controller values.
const (
	defaultTargetCycle = 200 * time.Millisecond
	defaultMinInterval = 200 * time.Millisecond
	defaultMaxInterval = 5 * time.Second
	defaultHistorySize = 32
)

// Tuning constants of the control law.
const (
	fastThreshold     = 0.8  // avg below target*0.8 is "fast"
	slowThreshold     = 1.1  // avg above target*1.1 is "slow"
	maxReduction      = 2.0  // cap on speed-up factor per cycle
	maxIncrease       = 2.5  // cap on slow-down factor per cycle
	maxPenalty        = 0.5  // cap on failure penalty above 1
	streakPenalty     = 0.15 // penalty per consecutive failure
	saturationWeight  = 0.5  // load factor per unit of saturation
	reductionHalfGain = 0.5
)

// Option configures a Controller.
type Option func(*Controller)

// WithTargetCycle sets the cycle duration the controller aims for.
func WithTargetCycle(d time.Duration) Option {
	return func(c *Controller) { c.target = d }
}

// WithMinInterval sets the lower bound for the polling interval.
func WithMinInterval(d time.Duration) Option {
	return func(c *Controller) { c.min = d }
}

// WithMaxInterval sets the upper bound for the polling interval.
func WithMaxInterval(d time.Duration) Option {
	return func(c *Controller) { c.max = d }
}

// WithHistorySize sets how many cycle durations are averaged.
func WithHistorySize(n int) Option {
	return func(c *Controller) { c.historySize = n }
}

// Controller computes the next polling interval from recent cycle outcomes.
// It is meant to be driven by a single polling loop; a mutex makes
// Diagnostics and Interval safe to call from other goroutines.
type Controller struct {
	mu          sync.Mutex
	target      time.Duration
	min         time.Duration
	max         time.Duration
	historySize int

	interval   time.Duration
	history    []time.Duration // ring buffer
	next       int             // write position in history
	samples    int
	errStreak  int
	saturation float64
}

// New creates a Controller starting at initial. If min > max the bounds are
// swapped, and initial is clamped into them.
func New(initial time.Duration, opts ...Option) *Controller {
	c := &Controller{
		target:      defaultTargetCycle,
		min:         defaultMinInterval,
		max:         defaultMaxInterval,
		historySize: defaultHistorySize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.min > c.max {
		c.min, c.max = c.max, c.min
	}
	if c.min < 0 {
		c.min = 0
	}
	if c.target <= 0 {
		c.target = defaultTargetCycle
	}
	if c.historySize <= 0 {
		c.historySize = defaultHistorySize
	}
	c.history = make([]time.Duration, c.historySize)
	c.interval = c.clamp(initial)
	return c
}

// UpdateEntitySaturation records downstream pressure in [0, 1]. Values
// outside the range are clamped and NaN counts as 0.
func (c *Controller) UpdateEntitySaturation(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saturation = clampUnit(v)
}

// RecordCycle feeds one cycle outcome into the controller and returns the
// next interval, which is always within [min, max].
func (c *Controller) RecordCycle(duration time.Duration, success bool, errorRatio float64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.push(max(duration, 0))
	if success {
		c.errStreak = 0
	} else {
		c.errStreak++
	}

	avg := c.average()
	target := c.target.Seconds()
	current := c.interval.Seconds()
	next := current

	switch {
	case !success:
		penalty := 1 + math.Min(maxPenalty, streakPenalty*float64(c.errStreak)+clampUnit(errorRatio))
		next = math.Min(c.max.Seconds(), current*penalty)

	case avg < target*fastThreshold:
		reduction := maxReduction
		if avg > 0 {
			reduction = math.Min(maxReduction, (target/avg)*reductionHalfGain)
		}
		next = math.Max(c.min.Seconds(), current/math.Max(1, reduction*c.load()))

	case avg > target*slowThreshold:
		increase := math.Min(maxIncrease, avg/target)
		next = math.Min(c.max.Seconds(), current*increase*c.load())
	}

	if math.IsNaN(next) || math.IsInf(next, 0) {
		next = current
	}
	c.interval = c.clamp(time.Duration(next * float64(time.Second)))
	return c.interval
}

// load is the saturation multiplier; 1 when downstream is idle.
func (c *Controller) load() float64 {
	return 1 + c.saturation*saturationWeight
}

func (c *Controller) push(d time.Duration) {
	c.history[c.next] = d
	c.next = (c.next + 1) % len(c.history)
	if c.samples < len(c.history) {
		c.samples++
	}
}

// average is the mean of the recorded durations in seconds. The sum is
// kept in float64 so very long durations cannot overflow it.
func (c *Controller) average() float64 {
	if c.samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < c.samples; i++ {
		sum += c.history[i].Seconds()
	}
	return sum / float64(c.samples)
}

func (c *Controller) clamp(d time.Duration) time.Duration {
	return min(max(d, c.min), c.max)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

// Interval returns the current polling interval.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Bounds returns the effective minimum and maximum interval.
func (c *Controller) Bounds() (time.Duration, time.Duration) {
	return c.min, c.max
}

// Diagnostics is a point-in-time view of the controller state.
type Diagnostics struct {
	TargetCycleMS     float64 `json:"target_cycle_ms"`
	CurrentIntervalMS float64 `json:"current_interval_ms"`
	AverageCycleMS    float64 `json:"average_cycle_ms"`
	HistorySamples    int     `json:"history_samples"`
	ErrorStreak       int     `json:"error_streak"`
	EntitySaturation  float64 `json:"entity_saturation"`
}

// Diagnostics returns the current controller state with millisecond values
// rounded to two decimals and saturation to three.
func (c *Controller) Diagnostics() Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Diagnostics{
		TargetCycleMS:     round(ms(c.target), 2),
		CurrentIntervalMS: round(ms(c.interval), 2),
		AverageCycleMS:    round(c.average()*1000, 2),
		HistorySamples:    c.samples,
		ErrorStreak:       c.errStreak,
		EntitySaturation:  round(c.saturation, 3),
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
