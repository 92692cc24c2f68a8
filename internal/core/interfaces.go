package core

import (
	"time"

	"traffic-service/internal/hardware"
	"traffic-service/internal/types"
)

// HardwareIO defines the GPIO operations needed by TrafficSystem
type HardwareIO interface {
	Initialize() error
	Cleanup()

	ReadDigitalInput(channel string) (bool, error)
	ReadDigitalOutput(channel string) (bool, error)
	WriteDigitalOutput(channel string, value bool) error
	RegisterInputCallback(channel string, callback hardware.InputCallback)
}

// Publisher receives state snapshots and fault reports off the critical path.
type Publisher interface {
	PublishStatus(status types.Status) error
	ReportFault(code int, description string) error
}

// Timer is a pending single-shot deadline.
type Timer interface {
	Stop() bool
}

// Clock arms single-shot monotonic deadlines.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the Clock backed by the runtime timers.
var SystemClock Clock = systemClock{}
