package hardware

import (
	"errors"
	"fmt"

	"traffic-service/internal/logger"
	"traffic-service/internal/types"
)

// ErrInvalidPattern is returned when a light level is outside {0,1}.
var ErrInvalidPattern = errors.New("invalid light pattern")

// DigitalWriter is the part of the hardware layer the signal head drives.
type DigitalWriter interface {
	WriteDigitalOutput(channel string, value bool) error
}

// SignalHead drives the red, yellow and green outputs as one 3-bit pattern.
// It is not safe for concurrent use; the controller calls it under its own lock.
type SignalHead struct {
	out    DigitalWriter
	logger *logger.Logger
	last   types.LightPattern
}

func NewSignalHead(out DigitalWriter, l *logger.Logger) *SignalHead {
	return &SignalHead{
		out:    out,
		logger: l.WithTag("Lights"),
	}
}

// Apply writes all three outputs unconditionally. A level outside {0,1} is
// logged and nothing is written.
func (s *SignalHead) Apply(red, yellow, green int) error {
	levels := [3]int{red, yellow, green}
	for i, v := range levels {
		if v != 0 && v != 1 {
			err := fmt.Errorf("%w: %s=%d", ErrInvalidPattern, LightChannels[i], v)
			s.logger.Errorf("Rejected pattern (%d,%d,%d): %v", red, yellow, green, err)
			return err
		}
	}

	var firstErr error
	for i, v := range levels {
		if err := s.out.WriteDigitalOutput(LightChannels[i], boolFromLevel(v)); err != nil {
			s.logger.Errorf("%v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	s.last = types.LightPattern{
		Red:    boolFromLevel(red),
		Yellow: boolFromLevel(yellow),
		Green:  boolFromLevel(green),
	}
	return firstErr
}

// Set applies a typed pattern.
func (s *SignalHead) Set(p types.LightPattern) error {
	return s.Apply(levelFromBool(p.Red), levelFromBool(p.Yellow), levelFromBool(p.Green))
}

// Last returns the most recently accepted pattern.
func (s *SignalHead) Last() types.LightPattern {
	return s.last
}
