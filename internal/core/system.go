// File: internal/core/system.go
package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"traffic-service/internal/fsm"
	"traffic-service/internal/hardware"
	"traffic-service/internal/logger"
	"traffic-service/internal/types"
)

// Fault codes reported to the Publisher.
const (
	FaultUnreachableMode = 1
	FaultInvalidPattern  = 2
	FaultOutputWrite     = 3
)

const faultQueueSize = 8

type fault struct {
	code        int
	description string
}

type Options struct {
	// BaseUnit is the length of one tick at rate 1.
	BaseUnit  time.Duration
	Cycle     fsm.Config
	Clock     Clock
	Publisher Publisher
}

// TrafficSystem owns the signal state. Button edges, timer expiry and the
// control surface all mutate it under mu.
type TrafficSystem struct {
	logger    *logger.Logger
	io        HardwareIO
	lights    *hardware.SignalHead
	clock     Clock
	publisher Publisher
	baseUnit  time.Duration

	mu       sync.Mutex
	state    *fsm.State
	timer    Timer
	timerGen uint64
	deadline time.Time
	running  bool

	statusCh chan types.Status
	faultCh  chan fault
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrafficSystem(io HardwareIO, opts Options, l *logger.Logger) *TrafficSystem {
	switch {
	case opts.BaseUnit <= 0:
		opts.BaseUnit = time.Second
	case opts.BaseUnit < types.MinBaseUnit:
		l.Warnf("Base unit %v below %v, clamping", opts.BaseUnit, types.MinBaseUnit)
		opts.BaseUnit = types.MinBaseUnit
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Cycle == (fsm.Config{}) {
		opts.Cycle = fsm.DefaultConfig()
	}
	tl := l.WithTag("Controller")
	return &TrafficSystem{
		logger:    tl,
		io:        io,
		lights:    hardware.NewSignalHead(io, l),
		clock:     opts.Clock,
		publisher: opts.Publisher,
		baseUnit:  opts.BaseUnit,
		state:     fsm.New(opts.Cycle),
		statusCh:  make(chan types.Status, 1),
		faultCh:   make(chan fault, faultQueueSize),
		stopCh:    make(chan struct{}),
	}
}

// Start claims the hardware, shows Green and arms the first deadline.
func (t *TrafficSystem) Start() error {
	t.logger.Infof("Starting traffic system")

	t.io.RegisterInputCallback(hardware.ChannelButtonMode, t.handleModeButton)
	t.io.RegisterInputCallback(hardware.ChannelButtonPedestrian, t.handlePedestrianButton)

	if err := t.io.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	if t.publisher != nil {
		t.wg.Add(1)
		go t.publishLoop()
	}

	t.mu.Lock()
	t.running = true
	eff := t.state.Reset()
	applyErr := t.applyLocked(eff)
	status := t.snapshotLocked(false)
	t.notifyLocked(status)
	t.mu.Unlock()

	t.reportApplyError(applyErr)
	t.logger.Infof("Traffic system started: mode=%s color=%s rate=%d", status.Mode, status.Color, status.Rate)
	return nil
}

// Shutdown cancels the deadline, forces all lights off and releases the hardware.
func (t *TrafficSystem) Shutdown() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.cancelTimerLocked()
	err := t.lights.Set(types.LightsOff)
	t.mu.Unlock()

	if err != nil {
		t.logger.Warnf("Failed to switch lights off: %v", err)
	}

	close(t.stopCh)
	t.wg.Wait()
	t.io.Cleanup()
	t.logger.Infof("Traffic system stopped")
}

// Status returns a snapshot for the control surface. Outside the flashing modes
// the light levels are read back from the outputs.
func (t *TrafficSystem) Status() types.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(true)
}

// SetRate replaces the rate. The pending deadline is not re-armed; the next
// arm uses the new rate.
func (t *TrafficSystem) SetRate(rate int) error {
	t.mu.Lock()
	if err := t.state.SetRate(rate); err != nil {
		t.mu.Unlock()
		return err
	}
	t.notifyLocked(t.snapshotLocked(false))
	t.mu.Unlock()

	t.logger.Infof("Rate set to %d", rate)
	return nil
}

// applyLocked carries out an Effect. Timer cancel and re-arm happen in the
// caller's critical section together with the state change.
func (t *TrafficSystem) applyLocked(eff fsm.Effect) error {
	if eff.Timer != fsm.TimerKeep {
		t.cancelTimerLocked()
	}

	var err error
	if eff.SetLights {
		err = t.lights.Set(eff.Lights)
	}

	if eff.Timer == fsm.TimerRearm {
		t.armLocked(eff.Ticks)
	}
	return err
}

func (t *TrafficSystem) snapshotLocked(live bool) types.Status {
	st := types.Status{
		Mode:       t.state.Mode,
		Color:      t.state.Color,
		Rate:       t.state.Rate,
		Lights:     t.state.Lights(),
		Pedestrian: t.state.Pedestrian,
		Deadline:   t.deadline,
	}
	if live && !t.state.Flashing() {
		levels := [3]*bool{&st.Lights.Red, &st.Lights.Yellow, &st.Lights.Green}
		for i, ch := range hardware.LightChannels {
			if v, err := t.io.ReadDigitalOutput(ch); err == nil {
				*levels[i] = v
			}
		}
	}
	return st
}

// notifyLocked hands the latest snapshot to the publisher without blocking.
// An unread older snapshot is replaced.
func (t *TrafficSystem) notifyLocked(status types.Status) {
	select {
	case t.statusCh <- status:
		return
	default:
	}
	select {
	case <-t.statusCh:
	default:
	}
	select {
	case t.statusCh <- status:
	default:
	}
}

func (t *TrafficSystem) reportFault(code int, description string) {
	select {
	case t.faultCh <- fault{code: code, description: description}:
	default:
		t.logger.Warnf("Fault queue full, dropping fault %d: %s", code, description)
	}
}

func (t *TrafficSystem) reportApplyError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, hardware.ErrInvalidPattern) {
		t.reportFault(FaultInvalidPattern, err.Error())
		return
	}
	t.reportFault(FaultOutputWrite, err.Error())
}

// afterTransition logs and reports once the lock has been released.
func (t *TrafficSystem) afterTransition(source string, prev types.Mode, eff fsm.Effect, applyErr error, status types.Status) {
	if eff.Recovered {
		t.logger.Errorf("%s: %s, recovered to %s/%s", source, eff.Fault, status.Mode, status.Color)
		t.reportFault(FaultUnreachableMode, eff.Fault)
	}
	if eff.Transition {
		t.logger.Infof("%s: mode %s -> %s", source, prev, status.Mode)
	}
	t.reportApplyError(applyErr)
}

func (t *TrafficSystem) publishLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			return
		case st := <-t.statusCh:
			if err := t.publisher.PublishStatus(st); err != nil {
				t.logger.Warnf("Failed to publish status: %v", err)
			}
		case f := <-t.faultCh:
			if err := t.publisher.ReportFault(f.code, f.description); err != nil {
				t.logger.Warnf("Failed to report fault %d: %v", f.code, err)
			}
		}
	}
}
