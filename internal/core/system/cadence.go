package system

import "time"

// Periodic wraps a system so that it only runs once every interval of
// simulated time. The wrapped system receives the accumulated dt, so rate
// based logic stays correct at any cadence.
type Periodic struct {
	inner    System
	interval time.Duration
	acc      time.Duration
}

// Every returns s unchanged when interval <= 0, otherwise a Periodic.
func Every(interval time.Duration, s System) System {
	if interval <= 0 {
		return s
	}
	return &Periodic{inner: s, interval: interval}
}

func (p *Periodic) Phase() Phase { return p.inner.Phase() }

func (p *Periodic) Update(dt time.Duration) {
	p.acc += dt
	if p.acc < p.interval {
		return
	}
	elapsed := p.acc
	p.acc = 0
	p.inner.Update(elapsed)
}

// Inner returns the wrapped system.
func (p *Periodic) Inner() System { return p.inner }
