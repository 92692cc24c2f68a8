package core

import "time"

// armLocked replaces the pending deadline with one ticks away at the current rate.
func (t *TrafficSystem) armLocked(ticks int) {
	t.cancelTimerLocked()

	d := t.state.TickDuration(ticks, t.baseUnit)
	t.timerGen++
	gen := t.timerGen
	t.deadline = t.clock.Now().Add(d)
	t.timer = t.clock.AfterFunc(d, func() {
		t.handleTimer(gen)
	})
}

// cancelTimerLocked stops the pending deadline. Bumping the generation makes
// an expiry that already fired and is waiting on the lock a no-op.
func (t *TrafficSystem) cancelTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.timerGen++
	t.deadline = time.Time{}
}

func (t *TrafficSystem) handleTimer(gen uint64) {
	t.mu.Lock()
	if !t.running || gen != t.timerGen {
		t.mu.Unlock()
		t.logger.Debugf("Discarding stale timer expiry")
		return
	}
	t.timer = nil
	t.deadline = time.Time{}

	prev := t.state.Mode
	eff := t.state.Tick()
	applyErr := t.applyLocked(eff)
	status := t.snapshotLocked(false)
	t.notifyLocked(status)
	t.mu.Unlock()

	t.logger.Debugf("Tick: mode=%s color=%s", status.Mode, status.Color)
	t.afterTransition("timer", prev, eff, applyErr, status)
}
