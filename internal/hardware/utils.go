package hardware

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

func levelFromBool(v bool) int {
	if v {
		return 1
	}
	return 0
}

func boolFromLevel(v int) bool {
	return v != 0
}

// describeLineError annotates the errno values a line request commonly fails with.
func describeLineError(cfg LineConfig, err error) error {
	var reason string
	switch {
	case errors.Is(err, unix.EBUSY):
		reason = "line busy, claimed by another consumer"
	case errors.Is(err, unix.ENOENT), errors.Is(err, unix.ENODEV):
		reason = "chip not present"
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		reason = "permission denied"
	case errors.Is(err, unix.EINVAL):
		reason = "invalid line offset or option"
	default:
		return fmt.Errorf("failed to request %s (%s:%d): %w", cfg.Name, cfg.Chip, cfg.Line, err)
	}
	return fmt.Errorf("failed to request %s (%s:%d): %s: %w", cfg.Name, cfg.Chip, cfg.Line, reason, err)
}
