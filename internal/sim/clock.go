package sim

import "time"

// Clock is the simulation clock. It advances by wall-clock tick length
// scaled by the gates, so pausing freezes every deadline in the world.
type Clock struct {
	now    time.Duration
	frames uint64
	gates  *Gates
}

func NewClock(gates *Gates) *Clock {
	return &Clock{gates: gates}
}

// Advance moves the clock forward by real scaled with the current time
// scale and returns the simulated step.
func (c *Clock) Advance(real time.Duration) time.Duration {
	step := real
	if c.gates != nil {
		step = time.Duration(float64(real) * c.gates.EffectiveScale())
	}
	c.now += step
	c.frames++
	return step
}

func (c *Clock) Now() time.Duration { return c.now }
func (c *Clock) Frames() uint64     { return c.frames }
