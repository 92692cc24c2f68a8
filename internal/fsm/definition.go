package fsm

import (
	"github.com/anggasct/fluo"
)

// Events
const (
	EventModePress       = "mode_press"
	EventPedestrianPress = "pedestrian_press"
	EventBothPressed     = "both_pressed"
	EventBothReleased    = "both_released"
	EventTick            = "tick"
)

var buttonEvents = [2]string{
	ButtonMode:       EventModePress,
	ButtonPedestrian: EventPedestrianPress,
}

var definition = buildDefinition()

// buildDefinition wires the four modes. Self-transitions on tick and
// pedestrian_press run only their action; entry actions are not repeated.
func buildDefinition() fluo.MachineDefinition {
	b := fluo.NewMachine()

	b.State(StateNormal).Initial().
		OnEntry(enterNormal).
		To(StateFlashingRed).On(EventModePress).
		To(StateAllOn).On(EventBothPressed).
		ToSelf().On(EventPedestrianPress).Do(requestCrossing).
		ToSelf().On(EventTick).Do(advanceColor)

	b.State(StateFlashingRed).
		OnEntry(enterFlashingRed).
		To(StateFlashingYellow).On(EventModePress).
		To(StateAllOn).On(EventBothPressed).
		ToSelf().On(EventTick).Do(toggleRed)

	b.State(StateFlashingYellow).
		OnEntry(enterFlashingYellow).
		To(StateNormal).On(EventModePress).
		To(StateAllOn).On(EventBothPressed).
		ToSelf().On(EventTick).Do(toggleYellow)

	b.State(StateAllOn).
		OnEntry(enterAllOn).
		To(StateNormal).On(EventBothReleased).
		ToSelf().On(EventTick)

	return b.Build()
}

// Reset enters Normal at Green with default durations and no pedestrian request.
// Rate and the pressed flags are left alone.
func (s *State) Reset() Effect {
	// SetState only fails for an unknown id.
	_ = s.machine.SetState(StateNormal)
	s.resetNormal()
	return s.takePending()
}

// ButtonEdge records the sampled level of b and runs the mode arbiter. A press
// that completes or breaks the two-button chord acts only on the override.
func (s *State) ButtonEdge(b Button, pressed bool) Effect {
	s.Pressed[b] = pressed

	var event string
	switch {
	case s.Pressed[ButtonMode] && s.Pressed[ButtonPedestrian]:
		event = EventBothPressed
	case !s.Pressed[ButtonMode] && !s.Pressed[ButtonPedestrian]:
		event = EventBothReleased
	case !pressed:
		return Effect{}
	default:
		event = buttonEvents[b]
	}

	eff, _ := s.fire(event)
	return eff
}

// fire delivers event to the machine. A rejected event (no transition from
// the current state) has no effect and reports false.
func (s *State) fire(event string) (Effect, bool) {
	s.pending = Effect{}
	res := s.machine.HandleEvent(event, nil)
	if !res.Success() {
		s.pending = Effect{}
		return Effect{}, false
	}
	eff := s.takePending()
	eff.Transition = res.PreviousState != res.CurrentState
	return eff, true
}

func (s *State) takePending() Effect {
	eff := s.pending
	s.pending = Effect{}
	return eff
}
