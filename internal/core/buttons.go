package core

import (
	"traffic-service/internal/fsm"
	"traffic-service/internal/hardware"
)

var buttonChannels = [2]string{
	fsm.ButtonMode:       hardware.ChannelButtonMode,
	fsm.ButtonPedestrian: hardware.ChannelButtonPedestrian,
}

func (t *TrafficSystem) handleModeButton(channel string, value bool) error {
	t.handleButton(fsm.ButtonMode)
	return nil
}

func (t *TrafficSystem) handlePedestrianButton(channel string, value bool) error {
	t.handleButton(fsm.ButtonPedestrian)
	return nil
}

// handleButton runs on both edges. The level is sampled under the lock; the
// edge direction reported by the input layer is not trusted.
func (t *TrafficSystem) handleButton(b fsm.Button) {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}

	pressed, err := t.io.ReadDigitalInput(buttonChannels[b])
	if err != nil {
		t.mu.Unlock()
		t.logger.Warnf("Failed to sample %s button: %v", b, err)
		return
	}

	prev := t.state.Mode
	eff := t.state.ButtonEdge(b, pressed)
	applyErr := t.applyLocked(eff)
	status := t.snapshotLocked(false)
	t.notifyLocked(status)
	t.mu.Unlock()

	t.logger.Debugf("Button %s pressed=%v", b, pressed)
	t.afterTransition(b.String()+" button", prev, eff, applyErr, status)
}
