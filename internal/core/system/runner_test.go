package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
	dts   []time.Duration
}

func (r *recorder) Phase() Phase { return r.phase }
func (r *recorder) Update(dt time.Duration) {
	*r.log = append(*r.log, r.name)
	r.dts = append(r.dts, dt)
}

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(&recorder{name: "cleanup", phase: PhaseCleanup, log: &log})
	r.Register(&recorder{name: "ai", phase: PhaseUpdate, log: &log})
	r.Register(&recorder{name: "input", phase: PhaseInput, log: &log})
	r.Register(&recorder{name: "motion", phase: PhaseUpdate, log: &log})

	r.Tick(time.Millisecond)
	assert.Equal(t, []string{"input", "ai", "motion", "cleanup"}, log)

	log = log[:0]
	r.TickPhase(PhaseUpdate, time.Millisecond)
	assert.Equal(t, []string{"ai", "motion"}, log)
	assert.Equal(t, 4, r.Len())
}

func TestEveryAccumulatesElapsedTime(t *testing.T) {
	var log []string
	inner := &recorder{name: "ai", phase: PhaseUpdate, log: &log}
	s := Every(50*time.Millisecond, inner)
	assert.Equal(t, PhaseUpdate, s.Phase())

	for i := 0; i < 5; i++ {
		s.Update(20 * time.Millisecond)
	}
	// runs at 60ms (3 ticks); 40ms remain accumulated
	assert.Equal(t, []time.Duration{60 * time.Millisecond}, inner.dts)

	s.Update(20 * time.Millisecond)
	assert.Equal(t, []time.Duration{60 * time.Millisecond, 60 * time.Millisecond}, inner.dts)
}

func TestEveryWithoutIntervalIsPassthrough(t *testing.T) {
	var log []string
	inner := &recorder{name: "ai", phase: PhaseUpdate, log: &log}
	assert.Same(t, System(inner), Every(0, inner))
}
