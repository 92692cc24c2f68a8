package types

import "time"

// Mode is the top-level operating state of the signal head.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFlashRed
	ModeFlashYellow
	ModeAllOn
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeFlashRed:
		return "flashing-red"
	case ModeFlashYellow:
		return "flashing-yellow"
	case ModeAllOn:
		return "all-on"
	default:
		return "unknown"
	}
}

// Color is the single lit light while in ModeNormal.
type Color int

const (
	ColorGreen Color = iota
	ColorYellow
	ColorRed
)

const colorCount = 3

// Next returns the cyclic successor (Red wraps to Green).
func (c Color) Next() Color {
	return (c + 1) % colorCount
}

func (c Color) String() string {
	switch c {
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	case ColorRed:
		return "red"
	default:
		return "unknown"
	}
}

// Durations maps each Color to its length in ticks.
type Durations [colorCount]int

// DefaultDurations is the Normal cycle with no pedestrian request.
var DefaultDurations = Durations{
	ColorGreen:  3,
	ColorYellow: 1,
	ColorRed:    2,
}

// PedestrianTicks replaces the Yellow and Red durations while a crossing is requested.
const PedestrianTicks = 5

// Rate bounds; the rate divides the base tick unit.
const (
	MinRate     = 1
	MaxRate     = 9
	DefaultRate = 1
)

// MinBaseUnit is the shortest tick unit accepted. Below it base/MaxRate
// truncates toward zero and the deadline fires back to back.
const MinBaseUnit = time.Millisecond

// LightPattern is the three output levels of the signal head.
type LightPattern struct {
	Red    bool
	Yellow bool
	Green  bool
}

var (
	LightsOff = LightPattern{}
	LightsAll = LightPattern{Red: true, Yellow: true, Green: true}
)

// Only returns the pattern with exactly c lit.
func Only(c Color) LightPattern {
	return LightPattern{
		Red:    c == ColorRed,
		Yellow: c == ColorYellow,
		Green:  c == ColorGreen,
	}
}

// Status is a consistent snapshot of the controller taken under its lock.
type Status struct {
	Mode       Mode
	Color      Color
	Rate       int
	Lights     LightPattern
	Pedestrian bool
	Deadline   time.Time
}
