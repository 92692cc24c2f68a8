package hardware

import (
	"fmt"
	"sync"

	"traffic-service/internal/logger"
)

// SimulatedIO is an in-memory stand-in for the GPIO lines, used with -simulate
// on machines without the signal hardware attached.
type SimulatedIO struct {
	logger         *logger.Logger
	outputs        map[string]bool
	inputs         map[string]bool
	inputCallbacks map[string]InputCallback
	initialized    bool
	mu             sync.RWMutex
}

func NewSimulatedIO(configs []LineConfig, l *logger.Logger) *SimulatedIO {
	sim := &SimulatedIO{
		logger:         l.WithTag("SimIO"),
		outputs:        make(map[string]bool),
		inputs:         make(map[string]bool),
		inputCallbacks: make(map[string]InputCallback),
	}
	for _, cfg := range configs {
		if cfg.Output {
			sim.outputs[cfg.Name] = false
		} else {
			sim.inputs[cfg.Name] = false
		}
	}
	return sim
}

func (s *SimulatedIO) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.logger.Infof("Simulated %d outputs and %d inputs", len(s.outputs), len(s.inputs))
	return nil
}

func (s *SimulatedIO) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.logger.Infof("Simulated hardware released")
}

func (s *SimulatedIO) ReadDigitalInput(channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.inputs[channel]
	if !ok {
		return false, fmt.Errorf("unknown input channel: %s", channel)
	}
	return v, nil
}

func (s *SimulatedIO) ReadDigitalOutput(channel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.outputs[channel]
	if !ok {
		return false, fmt.Errorf("unknown digital output channel: %s", channel)
	}
	return v, nil
}

func (s *SimulatedIO) WriteDigitalOutput(channel string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outputs[channel]; !ok {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}
	if !s.initialized {
		return fmt.Errorf("failed to set DO %s=%v: hardware not initialized", channel, value)
	}
	s.outputs[channel] = value
	s.logger.Debugf("Set DO %s=%v", channel, value)
	return nil
}

func (s *SimulatedIO) RegisterInputCallback(channel string, callback InputCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputCallbacks[channel] = callback
}

// SetInput drives a simulated input level and delivers the edge, if any, to the
// registered callback on the caller's goroutine.
func (s *SimulatedIO) SetInput(channel string, value bool) error {
	s.mu.Lock()
	prev, ok := s.inputs[channel]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown input channel: %s", channel)
	}
	s.inputs[channel] = value
	callback := s.inputCallbacks[channel]
	initialized := s.initialized
	s.mu.Unlock()

	if prev == value || callback == nil || !initialized {
		return nil
	}
	s.logger.Debugf("Edge on %s: rising=%v", channel, value)
	return callback(channel, value)
}
