package fsm

import (
	"fmt"

	"github.com/anggasct/fluo"

	"traffic-service/internal/types"
)

const stateKey = "traffic.state"

func stateFrom(ctx fluo.Context) *State {
	v, _ := ctx.Get(stateKey)
	return v.(*State)
}

func enterNormal(ctx fluo.Context) error {
	stateFrom(ctx).resetNormal()
	return nil
}

func (s *State) resetNormal() {
	s.Mode = types.ModeNormal
	s.Color = types.ColorGreen
	s.Durations = s.cfg.Durations
	s.Pedestrian = false
	s.RedOn = false
	s.YellowOn = false
	s.pending = Effect{
		SetLights: true,
		Lights:    types.Only(types.ColorGreen),
		Timer:     TimerRearm,
		Ticks:     s.Durations[types.ColorGreen],
	}
}

func enterFlashingRed(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.Mode = types.ModeFlashRed
	s.RedOn = true
	s.YellowOn = false
	s.pending = s.flashEffect()
	return nil
}

func enterFlashingYellow(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.Mode = types.ModeFlashYellow
	s.YellowOn = true
	s.RedOn = false
	s.pending = s.flashEffect()
	return nil
}

func enterAllOn(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.Mode = types.ModeAllOn
	s.pending = Effect{SetLights: true, Lights: types.LightsAll, Timer: TimerCancel}
	return nil
}

func (s *State) flashEffect() Effect {
	return Effect{SetLights: true, Lights: s.Lights(), Timer: TimerRearm, Ticks: 1}
}

// requestCrossing lengthens Yellow and Red; the deadline in flight is kept.
func requestCrossing(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.Durations[types.ColorYellow] = s.cfg.PedestrianTicks
	s.Durations[types.ColorRed] = s.cfg.PedestrianTicks
	s.Pedestrian = true
	return nil
}

func advanceColor(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.Color = s.Color.Next()
	if s.Color == types.ColorGreen && s.Pedestrian {
		s.Durations[types.ColorYellow] = s.cfg.Durations[types.ColorYellow]
		s.Durations[types.ColorRed] = s.cfg.Durations[types.ColorRed]
		s.Pedestrian = false
	}
	s.pending = Effect{
		SetLights: true,
		Lights:    types.Only(s.Color),
		Timer:     TimerRearm,
		Ticks:     s.Durations[s.Color],
	}
	return nil
}

func toggleRed(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.RedOn = !s.RedOn
	s.pending = s.flashEffect()
	return nil
}

func toggleYellow(ctx fluo.Context) error {
	s := stateFrom(ctx)
	s.YellowOn = !s.YellowOn
	s.pending = s.flashEffect()
	return nil
}

// Tick advances the active mode's sub-state on timer expiry. A Mode that has
// no machine state, or disagrees with it, is recovered to Normal.
func (s *State) Tick() Effect {
	id, known := modeStates[s.Mode]
	if !known {
		return s.recoverNormal(fmt.Sprintf("unreachable mode %d on timer expiry", int(s.Mode)))
	}
	if current := s.machine.CurrentState(); id != current {
		return s.recoverNormal(fmt.Sprintf("mode %s out of step with machine state %s on timer expiry", s.Mode, current))
	}

	eff, ok := s.fire(EventTick)
	if !ok {
		return s.recoverNormal(fmt.Sprintf("timer expiry rejected in mode %s", s.Mode))
	}
	return eff
}

func (s *State) recoverNormal(fault string) Effect {
	eff := s.Reset()
	eff.Transition = true
	eff.Recovered = true
	eff.Fault = fault
	return eff
}
