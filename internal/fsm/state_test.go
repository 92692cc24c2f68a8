package fsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-service/internal/types"
)

func newStarted(t *testing.T) *State {
	t.Helper()
	s := New(DefaultConfig())
	eff := s.Reset()
	require.Equal(t, TimerRearm, eff.Timer)
	return s
}

func TestNewStartupValues(t *testing.T) {
	s := New(DefaultConfig())

	assert.Equal(t, types.ModeNormal, s.Mode)
	assert.Equal(t, types.ColorGreen, s.Color)
	assert.Equal(t, types.Durations{3, 1, 2}, s.Durations)
	assert.Equal(t, 1, s.Rate)
	assert.False(t, s.Pedestrian)
	assert.False(t, s.RedOn)
	assert.False(t, s.YellowOn)
	assert.Equal(t, [2]bool{}, s.Pressed)
	assert.Equal(t, StateNormal, s.MachineState())
}

func TestResetEffect(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.SetRate(5))
	s.Pressed[ButtonMode] = true

	eff := s.Reset()

	assert.True(t, eff.SetLights)
	assert.Equal(t, types.Only(types.ColorGreen), eff.Lights)
	assert.Equal(t, TimerRearm, eff.Timer)
	assert.Equal(t, 3, eff.Ticks)
	assert.Equal(t, 5, s.Rate)
	assert.True(t, s.Pressed[ButtonMode])
}

func TestSetRate(t *testing.T) {
	s := New(DefaultConfig())

	for r := types.MinRate; r <= types.MaxRate; r++ {
		require.NoError(t, s.SetRate(r))
		assert.Equal(t, r, s.Rate)
	}

	for _, r := range []int{0, -3, 10, 42} {
		err := s.SetRate(r)
		assert.ErrorIs(t, err, ErrRateOutOfRange)
		assert.Equal(t, types.MaxRate, s.Rate)
	}
}

func TestTickDuration(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, 3*time.Second, s.TickDuration(3, time.Second))

	require.NoError(t, s.SetRate(4))
	assert.Equal(t, 750*time.Millisecond, s.TickDuration(3, time.Second))
	assert.Equal(t, 250*time.Millisecond, s.TickDuration(1, time.Second))
}

func TestTickNormalCycle(t *testing.T) {
	s := newStarted(t)

	want := []struct {
		color types.Color
		ticks int
	}{
		{types.ColorYellow, 1},
		{types.ColorRed, 2},
		{types.ColorGreen, 3},
		{types.ColorYellow, 1},
	}
	for _, w := range want {
		eff := s.Tick()
		assert.Equal(t, w.color, s.Color)
		assert.Equal(t, types.Only(w.color), eff.Lights)
		assert.Equal(t, TimerRearm, eff.Timer)
		assert.Equal(t, w.ticks, eff.Ticks)
		assert.False(t, eff.Transition)
	}
}

func TestTickFlashToggles(t *testing.T) {
	s := newStarted(t)
	s.ButtonEdge(ButtonMode, true)
	require.Equal(t, types.ModeFlashRed, s.Mode)
	require.True(t, s.RedOn)

	eff := s.Tick()
	assert.False(t, s.RedOn)
	assert.Equal(t, types.LightsOff, eff.Lights)
	assert.Equal(t, 1, eff.Ticks)

	eff = s.Tick()
	assert.True(t, s.RedOn)
	assert.Equal(t, types.LightPattern{Red: true}, eff.Lights)
}

func enterAllOnByChord(t *testing.T, s *State) {
	t.Helper()
	s.ButtonEdge(ButtonMode, true)
	s.ButtonEdge(ButtonPedestrian, true)
	require.Equal(t, types.ModeAllOn, s.Mode)
	require.Equal(t, StateAllOn, s.MachineState())
}

func TestTickAllOnDoesNothing(t *testing.T) {
	s := newStarted(t)
	enterAllOnByChord(t, s)

	eff := s.Tick()
	assert.Equal(t, Effect{}, eff)
	assert.Equal(t, types.ModeAllOn, s.Mode)
	assert.Equal(t, StateAllOn, s.MachineState())
}

func TestTickUnknownModeRecovers(t *testing.T) {
	s := newStarted(t)
	s.Mode = types.Mode(7)
	s.Color = types.ColorRed
	s.Durations = types.Durations{9, 9, 9}
	s.Pedestrian = true

	eff := s.Tick()

	assert.True(t, eff.Recovered)
	assert.Contains(t, eff.Fault, "unreachable mode 7")
	assert.Equal(t, types.ModeNormal, s.Mode)
	assert.Equal(t, types.ColorGreen, s.Color)
	assert.Equal(t, types.DefaultDurations, s.Durations)
	assert.False(t, s.Pedestrian)
	assert.Equal(t, TimerRearm, eff.Timer)
	assert.Equal(t, 3, eff.Ticks)
	assert.Equal(t, StateNormal, s.MachineState())
}

func TestTickOutOfStepModeRecovers(t *testing.T) {
	s := newStarted(t)
	s.ButtonEdge(ButtonMode, true)
	require.Equal(t, StateFlashingRed, s.MachineState())
	s.Mode = types.ModeFlashYellow

	eff := s.Tick()

	assert.True(t, eff.Recovered)
	assert.Contains(t, eff.Fault, "out of step")
	assert.Equal(t, types.ModeNormal, s.Mode)
	assert.Equal(t, StateNormal, s.MachineState())
	assert.Equal(t, types.Only(types.ColorGreen), eff.Lights)
}

func TestModeButtonCycle(t *testing.T) {
	s := newStarted(t)

	for _, want := range []struct {
		mode  types.Mode
		state string
	}{
		{types.ModeFlashRed, StateFlashingRed},
		{types.ModeFlashYellow, StateFlashingYellow},
		{types.ModeNormal, StateNormal},
		{types.ModeFlashRed, StateFlashingRed},
	} {
		eff := s.ButtonEdge(ButtonMode, true)
		assert.True(t, eff.Transition)
		assert.True(t, eff.SetLights)
		assert.Equal(t, TimerRearm, eff.Timer)
		assert.Equal(t, want.mode, s.Mode)
		assert.Equal(t, want.state, s.MachineState())

		eff = s.ButtonEdge(ButtonMode, false)
		assert.Equal(t, Effect{}, eff)
		assert.Equal(t, want.mode, s.Mode)
	}
}

func TestModeButtonEntersFlashWithLampOn(t *testing.T) {
	s := newStarted(t)

	eff := s.ButtonEdge(ButtonMode, true)
	assert.Equal(t, types.LightPattern{Red: true}, eff.Lights)
	assert.Equal(t, 1, eff.Ticks)
	s.ButtonEdge(ButtonMode, false)

	eff = s.ButtonEdge(ButtonMode, true)
	assert.Equal(t, types.LightPattern{Yellow: true}, eff.Lights)
	assert.False(t, s.RedOn)
	s.ButtonEdge(ButtonMode, false)

	eff = s.ButtonEdge(ButtonMode, true)
	assert.Equal(t, types.Only(types.ColorGreen), eff.Lights)
	assert.Equal(t, 3, eff.Ticks)
}

func TestPedestrianRequest(t *testing.T) {
	s := newStarted(t)

	eff := s.ButtonEdge(ButtonPedestrian, true)
	assert.Equal(t, TimerKeep, eff.Timer)
	assert.False(t, eff.SetLights)
	assert.True(t, s.Pedestrian)
	assert.Equal(t, types.Durations{3, 5, 5}, s.Durations)

	// Repeat presses are idempotent.
	s.ButtonEdge(ButtonPedestrian, false)
	s.ButtonEdge(ButtonPedestrian, true)
	assert.Equal(t, types.Durations{3, 5, 5}, s.Durations)
	s.ButtonEdge(ButtonPedestrian, false)

	assert.Equal(t, 5, s.Tick().Ticks) // yellow
	assert.Equal(t, 5, s.Tick().Ticks) // red
	assert.True(t, s.Pedestrian)

	eff = s.Tick()
	assert.Equal(t, types.ColorGreen, s.Color)
	assert.Equal(t, 3, eff.Ticks)
	assert.False(t, s.Pedestrian)
	assert.Equal(t, types.DefaultDurations, s.Durations)
}

func TestPedestrianIgnoredOutsideNormal(t *testing.T) {
	s := newStarted(t)
	s.ButtonEdge(ButtonMode, true)
	s.ButtonEdge(ButtonMode, false)

	eff := s.ButtonEdge(ButtonPedestrian, true)
	assert.Equal(t, Effect{}, eff)
	assert.False(t, s.Pedestrian)
	assert.Equal(t, types.DefaultDurations, s.Durations)
}

func TestBothButtonsOverride(t *testing.T) {
	s := newStarted(t)
	require.NoError(t, s.SetRate(6))

	s.ButtonEdge(ButtonMode, true)
	require.Equal(t, types.ModeFlashRed, s.Mode)

	eff := s.ButtonEdge(ButtonPedestrian, true)
	assert.True(t, eff.Transition)
	assert.Equal(t, types.ModeAllOn, s.Mode)
	assert.Equal(t, types.LightsAll, eff.Lights)
	assert.Equal(t, TimerCancel, eff.Timer)
	assert.False(t, s.Pedestrian, "a press that completes the chord is not a pedestrian request")

	// Releasing one button keeps the override; the held one does not act.
	eff = s.ButtonEdge(ButtonPedestrian, false)
	assert.Equal(t, Effect{}, eff)
	assert.Equal(t, types.ModeAllOn, s.Mode)

	// Pressing it again while the other is held stays overridden.
	eff = s.ButtonEdge(ButtonPedestrian, true)
	assert.Equal(t, Effect{}, eff)
	assert.Equal(t, types.ModeAllOn, s.Mode)

	s.ButtonEdge(ButtonPedestrian, false)
	eff = s.ButtonEdge(ButtonMode, false)
	assert.True(t, eff.Transition)
	assert.Equal(t, types.ModeNormal, s.Mode)
	assert.Equal(t, types.ColorGreen, s.Color)
	assert.Equal(t, types.Only(types.ColorGreen), eff.Lights)
	assert.Equal(t, TimerRearm, eff.Timer)
	assert.Equal(t, 3, eff.Ticks)
	assert.Equal(t, 6, s.Rate)
}

func TestButtonsIgnoredWhileOverridden(t *testing.T) {
	s := newStarted(t)
	enterAllOnByChord(t, s)

	// Re-pressing the released button while the other is held.
	s.ButtonEdge(ButtonMode, false)
	eff := s.ButtonEdge(ButtonMode, true)
	assert.Equal(t, Effect{}, eff)
	assert.Equal(t, types.ModeAllOn, s.Mode)

	s.ButtonEdge(ButtonPedestrian, false)
	eff = s.ButtonEdge(ButtonMode, true)
	assert.Equal(t, Effect{}, eff, "a lone press while all-on has no transition")
	assert.Equal(t, StateAllOn, s.MachineState())
}

func TestTransitionFlagOnlyOnModeChange(t *testing.T) {
	s := newStarted(t)

	assert.False(t, s.Tick().Transition)
	assert.False(t, s.ButtonEdge(ButtonPedestrian, true).Transition)
	s.ButtonEdge(ButtonPedestrian, false)
	assert.True(t, s.ButtonEdge(ButtonMode, true).Transition)
	assert.False(t, s.Tick().Transition)
}

func TestInstancesAreIndependent(t *testing.T) {
	a := newStarted(t)
	b := newStarted(t)

	a.ButtonEdge(ButtonMode, true)
	a.Tick()

	assert.Equal(t, StateFlashingRed, a.MachineState())
	assert.False(t, a.RedOn)
	assert.Equal(t, StateNormal, b.MachineState())
	assert.Equal(t, types.ColorGreen, b.Color)
}

func TestLightsPerMode(t *testing.T) {
	s := newStarted(t)
	s.Color = types.ColorRed
	assert.Equal(t, types.LightPattern{Red: true}, s.Lights())
	assert.False(t, s.Flashing())

	s.Mode = types.ModeFlashYellow
	s.YellowOn = true
	assert.Equal(t, types.LightPattern{Yellow: true}, s.Lights())
	assert.True(t, s.Flashing())

	s.Mode = types.ModeAllOn
	assert.Equal(t, types.LightsAll, s.Lights())

	s.Mode = types.Mode(99)
	assert.Equal(t, types.LightsOff, s.Lights())
}
