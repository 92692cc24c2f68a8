package fsm

import (
	"errors"
	"fmt"
	"time"

	"github.com/anggasct/fluo"

	"traffic-service/internal/types"
)

// Machine state ids, one per Mode.
const (
	StateNormal         = "normal"
	StateFlashingRed    = "flashing-red"
	StateFlashingYellow = "flashing-yellow"
	StateAllOn          = "all-on"
)

var modeStates = map[types.Mode]string{
	types.ModeNormal:      StateNormal,
	types.ModeFlashRed:    StateFlashingRed,
	types.ModeFlashYellow: StateFlashingYellow,
	types.ModeAllOn:       StateAllOn,
}

// Button identifies one of the two push-buttons.
type Button int

const (
	ButtonMode       Button = iota // cycles Normal -> FlashRed -> FlashYellow
	ButtonPedestrian               // requests an extended crossing
)

func (b Button) String() string {
	switch b {
	case ButtonMode:
		return "mode"
	case ButtonPedestrian:
		return "pedestrian"
	default:
		return fmt.Sprintf("button(%d)", int(b))
	}
}

// TimerOp tells the caller what to do with the pending deadline.
type TimerOp int

const (
	TimerKeep   TimerOp = iota // leave the deadline in flight untouched
	TimerCancel                // cancel, arm nothing
	TimerRearm                 // cancel, then arm for Effect.Ticks
)

// Effect is the externally visible outcome of one transition. The caller
// applies it inside the same critical section that produced it.
type Effect struct {
	Transition bool // Mode changed
	SetLights  bool
	Lights     types.LightPattern
	Timer      TimerOp
	Ticks      int
	Recovered  bool // an unreachable mode was reset to Normal
	Fault      string
}

var ErrRateOutOfRange = errors.New("rate out of range")

// Config holds the cycle parameters. The zero value is not valid; use DefaultConfig.
type Config struct {
	Durations       types.Durations
	PedestrianTicks int
}

func DefaultConfig() Config {
	return Config{
		Durations:       types.DefaultDurations,
		PedestrianTicks: types.PedestrianTicks,
	}
}

// State is the controller's shared record. It carries no lock of its own; every
// method must be called with the owner's lock held. Mode mirrors the machine's
// current state and is updated by the entry actions.
type State struct {
	cfg     Config
	machine fluo.Machine
	pending Effect

	Mode       types.Mode
	Color      types.Color
	Durations  types.Durations
	Pedestrian bool
	RedOn      bool
	YellowOn   bool
	Pressed    [2]bool
	Rate       int
}

// New returns a started State at its startup values: Normal, Green, default
// durations, rate 1, all flags cleared.
func New(cfg Config) *State {
	s := &State{
		cfg:  cfg,
		Rate: types.DefaultRate,
	}
	s.machine = definition.CreateInstance()
	s.machine.Context().Set(stateKey, s)
	// The definition is static; a start failure is a programming error.
	if err := s.machine.Start(); err != nil {
		panic(fmt.Sprintf("fsm: failed to start mode machine: %v", err))
	}
	s.pending = Effect{}
	return s
}

// MachineState returns the id of the machine's current state.
func (s *State) MachineState() string {
	return s.machine.CurrentState()
}

// SetRate replaces the rate if r is within [MinRate, MaxRate].
func (s *State) SetRate(r int) error {
	if r < types.MinRate || r > types.MaxRate {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrRateOutOfRange, r, types.MinRate, types.MaxRate)
	}
	s.Rate = r
	return nil
}

// TickDuration converts ticks to wall time at the current rate.
func (s *State) TickDuration(ticks int, base time.Duration) time.Duration {
	return time.Duration(ticks) * (base / time.Duration(s.Rate))
}

// Lights returns the pattern the state machine believes is shown.
func (s *State) Lights() types.LightPattern {
	switch s.Mode {
	case types.ModeNormal:
		return types.Only(s.Color)
	case types.ModeFlashRed:
		return types.LightPattern{Red: s.RedOn}
	case types.ModeFlashYellow:
		return types.LightPattern{Yellow: s.YellowOn}
	case types.ModeAllOn:
		return types.LightsAll
	default:
		return types.LightsOff
	}
}

// Flashing reports whether the light status comes from the toggle flags.
func (s *State) Flashing() bool {
	return s.Mode == types.ModeFlashRed || s.Mode == types.ModeFlashYellow
}
