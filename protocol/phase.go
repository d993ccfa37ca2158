package protocol

import (
	"sync"
	"time"
)

// Phase identifies one of the four ordered trial stages.
type Phase int

const (
	PhaseEnrollment Phase = iota
	PhaseTreatment
	PhaseMonitoring
	PhaseAnalysis
)

// String returns the phase's name.
func (p Phase) String() string {
	switch p {
	case PhaseEnrollment:
		return "enrollment"
	case PhaseTreatment:
		return "treatment"
	case PhaseMonitoring:
		return "monitoring"
	case PhaseAnalysis:
		return "analysis"
	}
	return "unknown"
}

// Valid returns true if the phase is one of the four defined stages.
func (p Phase) Valid() bool {
	return p >= PhaseEnrollment && p <= PhaseAnalysis
}

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseAnalysis
}

// Next returns the phase following p. Calling Next on the terminal phase
// returns the terminal phase unchanged.
func (p Phase) Next() Phase {
	if p.Terminal() {
		return p
	}
	return p + 1
}

// ParsePhase resolves a phase name. The bool is false for unknown names.
func ParsePhase(name string) (Phase, bool) {
	for p := PhaseEnrollment; p <= PhaseAnalysis; p++ {
		if p.String() == name {
			return p, true
		}
	}
	return 0, false
}

// PhaseClock is the single global phase cursor plus its transition timer.
// It is initialized once and mutated only by Advance and ForceAnalysis;
// every gating check reads it through this type rather than a module-level
// variable.
type PhaseClock struct {
	mu             sync.RWMutex
	phase          Phase
	lastTransition time.Time
	duration       time.Duration
	now            func() time.Time
}

// NewPhaseClock creates a clock starting in Enrollment with the given
// phase duration. A nil now function defaults to time.Now; tests inject a
// manual clock.
func NewPhaseClock(duration time.Duration, now func() time.Time) *PhaseClock {
	if now == nil {
		now = time.Now
	}
	return &PhaseClock{
		phase:          PhaseEnrollment,
		lastTransition: now(),
		duration:       duration,
		now:            now,
	}
}

// Current returns the phase cursor.
func (c *PhaseClock) Current() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Duration returns the fixed per-phase duration.
func (c *PhaseClock) Duration() time.Duration {
	return c.duration
}

// LastTransition returns the instant of the most recent transition, or the
// clock's creation time if none has occurred.
func (c *PhaseClock) LastTransition() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTransition
}

// TimeRemaining returns how long until the next transition is legal, or 0
// if one is already legal or the phase is terminal.
func (c *PhaseClock) TimeRemaining() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.phase.Terminal() {
		return 0
	}
	remaining := c.duration - c.now().Sub(c.lastTransition)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Ready reports whether Advance would currently succeed.
func (c *PhaseClock) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.phase.Terminal() && c.now().Sub(c.lastTransition) >= c.duration
}

// Advance moves the cursor exactly one phase forward and resets the timer.
// It fails with a TimingError before the phase duration has elapsed and
// with a ValidationError once the cursor is terminal.
func (c *PhaseClock) Advance() (from, to Phase, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.Terminal() {
		return c.phase, c.phase, Errorf(ValidationError, "phase %s is terminal", c.phase)
	}
	elapsed := c.now().Sub(c.lastTransition)
	if elapsed < c.duration {
		return c.phase, c.phase, Errorf(TimingError,
			"phase %s has %s remaining", c.phase, c.duration-elapsed)
	}

	from = c.phase
	c.phase = c.phase.Next()
	c.lastTransition = c.now()
	return from, c.phase, nil
}

// ForceAnalysis jumps the cursor to the terminal phase regardless of the
// timer. It returns the phase the cursor left and whether the clock was
// already terminal, in which case the call is a no-op.
func (c *PhaseClock) ForceAnalysis() (from Phase, already bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase.Terminal() {
		return c.phase, true
	}
	from = c.phase
	c.phase = PhaseAnalysis
	c.lastTransition = c.now()
	return from, false
}

// Now returns the clock's current instant. Exposed so the trial core
// timestamps records consistently with phase timing.
func (c *PhaseClock) Now() time.Time {
	return c.now()
}
