package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"traffic-service/internal/logger"
)

// InputCallback is invoked on every edge of an input line. value is the level
// reported with the edge.
type InputCallback func(channel string, value bool) error

// gpioLine is the part of *gpiocdev.Line the service uses.
type gpioLine interface {
	Value() (int, error)
	SetValue(value int) error
	Close() error
}

type lineRequester func(chip string, offset int, options ...gpiocdev.LineReqOption) (gpioLine, error)

func requestCdevLine(chip string, offset int, options ...gpiocdev.LineReqOption) (gpioLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, options...)
	if err != nil {
		return nil, err
	}
	return line, nil
}

type LinuxHardwareIO struct {
	logger         *logger.Logger
	configs        []LineConfig
	debounce       time.Duration
	requestLine    lineRequester
	lines          map[string]gpioLine
	acquired       []string // acquisition order, released in reverse
	inputCallbacks map[string]InputCallback
	initialValues  map[string]bool
	mu             sync.RWMutex
}

func NewLinuxHardwareIO(configs []LineConfig, debounce time.Duration, l *logger.Logger) *LinuxHardwareIO {
	return &LinuxHardwareIO{
		logger:         l.WithTag("Hardware"),
		configs:        configs,
		debounce:       debounce,
		requestLine:    requestCdevLine,
		lines:          make(map[string]gpioLine),
		inputCallbacks: make(map[string]InputCallback),
		initialValues:  make(map[string]bool),
	}
}

func (io *LinuxHardwareIO) SetInitialValue(name string, value bool) {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.initialValues[name] = value
}

// Initialize claims every configured line. On failure all lines claimed so far
// are released in reverse order and no line is left held.
func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Infof("Initializing %d GPIO lines", len(io.configs))

	for _, cfg := range io.configs {
		line, err := io.requestLine(cfg.Chip, cfg.Line, io.lineOptions(cfg)...)
		if err != nil {
			err = describeLineError(cfg, err)
			io.logger.Errorf("%v", err)
			io.releaseAll()
			return err
		}

		io.mu.Lock()
		io.lines[cfg.Name] = line
		io.acquired = append(io.acquired, cfg.Name)
		io.mu.Unlock()

		kind := "DI"
		if cfg.Output {
			kind = "DO"
		}
		io.logger.Infof("Configured %s %s: chip=%s, line=%d", kind, cfg.Name, cfg.Chip, cfg.Line)
	}

	return nil
}

func (io *LinuxHardwareIO) lineOptions(cfg LineConfig) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{gpiocdev.WithConsumer(consumerName)}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	if cfg.Output {
		io.mu.RLock()
		val := levelFromBool(io.initialValues[cfg.Name])
		io.mu.RUnlock()
		return append(opts, gpiocdev.AsOutput(val))
	}

	opts = append(opts, gpiocdev.AsInput, gpiocdev.WithBothEdges)
	switch cfg.Bias {
	case BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	case BiasDisabled:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}
	if io.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(io.debounce))
	}

	name := cfg.Name
	return append(opts, gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
		io.handleEdge(name, evt)
	}))
}

func (io *LinuxHardwareIO) handleEdge(channel string, evt gpiocdev.LineEvent) {
	rising := evt.Type == gpiocdev.LineEventRisingEdge
	io.logger.Debugf("Edge on %s: rising=%v seqno=%d", channel, rising, evt.LineSeqno)

	io.mu.RLock()
	callback, exists := io.inputCallbacks[channel]
	io.mu.RUnlock()

	if !exists {
		io.logger.Debugf("No callback registered for channel: %s", channel)
		return
	}
	if err := callback(channel, rising); err != nil {
		io.logger.Warnf("Error in callback for %s: %v", channel, err)
	}
}

func (io *LinuxHardwareIO) RegisterInputCallback(channel string, callback InputCallback) {
	io.mu.Lock()
	defer io.mu.Unlock()
	io.inputCallbacks[channel] = callback
	io.logger.Debugf("Registered callback for channel: %s", channel)
}

func (io *LinuxHardwareIO) readLine(channel string) (bool, error) {
	io.mu.RLock()
	line, ok := io.lines[channel]
	io.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("unknown channel: %s", channel)
	}
	val, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", channel, err)
	}
	return boolFromLevel(val), nil
}

func (io *LinuxHardwareIO) ReadDigitalInput(channel string) (bool, error) {
	return io.readLine(channel)
}

// ReadDigitalOutput reads back the level currently driven on an output line.
func (io *LinuxHardwareIO) ReadDigitalOutput(channel string) (bool, error) {
	return io.readLine(channel)
}

func (io *LinuxHardwareIO) WriteDigitalOutput(channel string, value bool) error {
	io.mu.RLock()
	line, ok := io.lines[channel]
	io.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown digital output channel: %s", channel)
	}

	if err := line.SetValue(levelFromBool(value)); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", channel, value, err)
	}
	return nil
}

func (io *LinuxHardwareIO) releaseAll() {
	io.mu.Lock()
	defer io.mu.Unlock()

	for i := len(io.acquired) - 1; i >= 0; i-- {
		name := io.acquired[i]
		if err := io.lines[name].Close(); err != nil {
			io.logger.Warnf("Failed to close GPIO line %s: %v", name, err)
		} else {
			io.logger.Debugf("Closed GPIO line for %s", name)
		}
		delete(io.lines, name)
	}
	io.acquired = nil
}

func (io *LinuxHardwareIO) Cleanup() {
	io.logger.Infof("Cleaning up hardware resources")
	io.releaseAll()
	io.logger.Infof("Hardware cleanup complete")
}
