// Package equipment implements the power lifecycle and energy accounting of a
// single medical device.
package equipment

import (
	"fmt"
	"time"

	"github.com/ajitpratap0/wardsim/internal/models"
)

const (
	// DefaultSleepAfter is how long a room must be empty before READY equipment sleeps.
	DefaultSleepAfter = 10 * time.Second

	// DefaultShutdownAfter is how long a room must be empty before sleeping equipment powers off.
	DefaultShutdownAfter = 30 * time.Second

	// DefaultSleepFraction is the share of rated power drawn while sleeping.
	DefaultSleepFraction = 0.1
)

// Policy holds the idle thresholds applied to every device of a simulation.
type Policy struct {
	SleepAfter       time.Duration `json:"sleep_after" mapstructure:"sleep_after"`
	ShutdownAfter    time.Duration `json:"shutdown_after" mapstructure:"shutdown_after"`
	ShutdownDuration time.Duration `json:"shutdown_duration" mapstructure:"shutdown_duration"` // zero = SLEEP goes straight to OFF
	SleepFraction    float64       `json:"sleep_fraction" mapstructure:"sleep_fraction"`
}

// DefaultPolicy returns the reference idle policy.
func DefaultPolicy() Policy {
	return Policy{
		SleepAfter:    DefaultSleepAfter,
		ShutdownAfter: DefaultShutdownAfter,
		SleepFraction: DefaultSleepFraction,
	}
}

// Delta reports what one tick did to a device.
type Delta struct {
	From       models.EquipmentState
	To         models.EquipmentState
	ConsumedWh float64
	BaselineWh float64
	// Wasted is set when a preload (cold start or wake) reached OFF without
	// anyone arriving; WastedWh is the energy drawn since the preload.
	Wasted   bool
	WastedWh float64
}

// Changed reports whether the tick moved the device to a new state.
func (d Delta) Changed() bool { return d.From != d.To }

// Equipment is one device instance, owned exclusively by its room.
type Equipment struct {
	spec   Spec
	policy Policy

	state   models.EquipmentState
	elapsed time.Duration

	consumedWh float64
	baselineWh float64

	preloaded   bool
	preloadWake bool
	preloadAt   time.Duration
	preloadWh   float64
}

// New creates a device in the OFF state.
func New(spec Spec, policy Policy) *Equipment {
	return &Equipment{
		spec:   spec,
		policy: policy,
		state:  models.StateOff,
	}
}

// Name returns the device display name.
func (e *Equipment) Name() string { return e.spec.Name }

// Spec returns the device model.
func (e *Equipment) Spec() Spec { return e.spec }

// State returns the current lifecycle state.
func (e *Equipment) State() models.EquipmentState { return e.state }

// Elapsed returns the time spent in the current state.
func (e *Equipment) Elapsed() time.Duration { return e.elapsed }

// ConsumedWh returns cumulative energy drawn.
func (e *Equipment) ConsumedWh() float64 { return e.consumedWh }

// BaselineWh returns the energy an always-on device would have drawn over the same ticks.
func (e *Equipment) BaselineWh() float64 { return e.baselineWh }

// SavedWh returns the energy saved relative to the always-on baseline.
func (e *Equipment) SavedWh() float64 { return e.baselineWh - e.consumedWh }

// PreloadPending reports whether a preload is waiting for an arrival, and when it began.
func (e *Equipment) PreloadPending() (bool, time.Duration) { return e.preloaded, e.preloadAt }

// PowerOn starts a cold activation. Only valid from OFF.
func (e *Equipment) PowerOn() error {
	if e.state != models.StateOff {
		return fmt.Errorf("power on %s from %s: %w", e.spec.Name, e.state, models.ErrAlreadyActive)
	}
	e.set(models.StateStarting)
	e.preloaded = false
	e.preloadWake = false
	return nil
}

// Preload starts a cold activation on behalf of a prediction at simulated time now.
func (e *Equipment) Preload(now time.Duration) error {
	if err := e.PowerOn(); err != nil {
		return err
	}
	e.markPreload(now, false)
	return nil
}

// PreloadWake wakes sleeping equipment on behalf of a prediction at simulated
// time now. The device stays pending until an arrival settles it or it powers off.
func (e *Equipment) PreloadWake(now time.Duration) error {
	if err := e.Wake(); err != nil {
		return err
	}
	e.markPreload(now, true)
	return nil
}

// ConsumePreload settles a pending preload when an occupant arrives at now.
// saved is capped at the startup duration; lost is the startup time still to wait.
// A wake preload never spares a startup, so it settles at zero both ways.
func (e *Equipment) ConsumePreload(now time.Duration) (saved, lost time.Duration, ok bool) {
	if !e.preloaded {
		return 0, 0, false
	}
	e.preloaded = false
	if e.preloadWake {
		e.preloadWake = false
		return 0, 0, true
	}
	saved = min(e.spec.Startup, max(0, now-e.preloadAt))
	return saved, e.spec.Startup - saved, true
}

// Wake returns sleeping equipment to READY without paying the startup cost.
func (e *Equipment) Wake() error {
	if e.state != models.StateSleep {
		return fmt.Errorf("wake %s from %s: %w", e.spec.Name, e.state, models.ErrInvalidTransition)
	}
	e.set(models.StateReady)
	return nil
}

// BeginUse marks READY equipment as IN_USE.
func (e *Equipment) BeginUse() error {
	if e.state != models.StateReady {
		return fmt.Errorf("begin use of %s in %s: %w", e.spec.Name, e.state, models.ErrNotReady)
	}
	e.set(models.StateInUse)
	return nil
}

// EndUse returns IN_USE equipment to READY.
func (e *Equipment) EndUse() error {
	if e.state != models.StateInUse {
		return fmt.Errorf("end use of %s in %s: %w", e.spec.Name, e.state, models.ErrNotReady)
	}
	e.set(models.StateReady)
	return nil
}

// PowerFraction returns the share of rated power drawn in the current state.
func (e *Equipment) PowerFraction() float64 {
	switch e.state {
	case models.StateStarting:
		return e.Progress()
	case models.StateReady, models.StateInUse:
		return 1.0
	case models.StateSleep:
		return e.policy.SleepFraction
	case models.StateShuttingDown:
		return e.policy.SleepFraction * (1 - e.Progress())
	default:
		return 0
	}
}

// Progress returns the startup or shutdown completion in [0, 1].
func (e *Equipment) Progress() float64 {
	var total time.Duration
	switch e.state {
	case models.StateStarting:
		total = e.spec.Startup
	case models.StateShuttingDown:
		total = e.policy.ShutdownDuration
	default:
		return 0
	}
	if total <= 0 {
		return 1
	}
	return min(1.0, float64(e.elapsed)/float64(total))
}

// Remaining returns the time left before a STARTING or SHUTTING_DOWN device settles.
func (e *Equipment) Remaining() time.Duration {
	switch e.state {
	case models.StateStarting:
		return max(0, e.spec.Startup-e.elapsed)
	case models.StateShuttingDown:
		return max(0, e.policy.ShutdownDuration-e.elapsed)
	default:
		return 0
	}
}

// Tick advances the device by dt. idle is how long the owning room has been
// empty (zero while occupied). Energy is charged at the power drawn when the
// tick began; at most one state transition happens per tick.
func (e *Equipment) Tick(dt, idle time.Duration) Delta {
	d := Delta{From: e.state}
	hours := dt.Hours()
	d.ConsumedWh = hours * e.PowerFraction() * e.spec.RatedPower
	d.BaselineWh = hours * e.spec.RatedPower
	e.consumedWh += d.ConsumedWh
	e.baselineWh += d.BaselineWh
	e.elapsed += dt

	switch e.state {
	case models.StateStarting:
		if e.elapsed >= e.spec.Startup {
			e.set(models.StateReady)
		}
	// IN_USE is left alone: the owning room ends the examination, returning
	// the device to READY, before it ticks an empty room.
	case models.StateReady:
		if idle >= e.policy.SleepAfter {
			e.set(models.StateSleep)
		}
	case models.StateSleep:
		if idle >= e.policy.ShutdownAfter {
			if e.policy.ShutdownDuration > 0 {
				e.set(models.StateShuttingDown)
			} else {
				e.set(models.StateOff)
			}
		}
	case models.StateShuttingDown:
		if e.elapsed >= e.policy.ShutdownDuration {
			e.set(models.StateOff)
		}
	}

	if e.state == models.StateOff && d.From != models.StateOff && e.preloaded {
		d.Wasted = true
		d.WastedWh = e.consumedWh - e.preloadWh
		e.preloaded = false
		e.preloadWake = false
	}
	d.To = e.state
	return d
}

func (e *Equipment) markPreload(now time.Duration, wake bool) {
	e.preloaded = true
	e.preloadWake = wake
	e.preloadAt = now
	e.preloadWh = e.consumedWh
}

func (e *Equipment) set(s models.EquipmentState) {
	e.state = s
	e.elapsed = 0
}
