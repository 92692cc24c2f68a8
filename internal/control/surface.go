// Package control is the byte-oriented read/write surface over the controller,
// shaped like a small device file: a read returns one status block, a write
// sets the cycle rate.
package control

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"traffic-service/internal/logger"
	"traffic-service/internal/types"
)

const (
	// StatusBufferSize caps the status block.
	StatusBufferSize = 128
	// WriteBufferSize caps a single write.
	WriteBufferSize = 16
)

// ErrTransfer reports that bytes could not be moved to or from the caller.
// Validation failures never return it.
var ErrTransfer = errors.New("control: cannot transfer data")

// Controller is the state owner the surface reads and writes.
type Controller interface {
	Status() types.Status
	SetRate(rate int) error
}

type Surface struct {
	ctrl   Controller
	logger *logger.Logger
}

func NewSurface(ctrl Controller, l *logger.Logger) *Surface {
	return &Surface{
		ctrl:   ctrl,
		logger: l.WithTag("Control"),
	}
}

// Open returns a fresh handle positioned at the start.
func (s *Surface) Open() (*Handle, error) {
	return &Handle{surface: s}, nil
}

// Handle is one open session. It is not safe for concurrent use.
type Handle struct {
	surface *Surface
	offset  int64
	block   string
	taken   bool // block holds a snapshot for this pass
}

// Read serves one status block, snapshotted on the first read after Open or a
// rewind. Once the block is consumed reads return io.EOF until Seek(0).
func (h *Handle) Read(p []byte) (int, error) {
	if p == nil {
		return 0, ErrTransfer
	}
	if !h.taken {
		h.block = FormatStatus(h.surface.ctrl.Status())
		h.taken = true
	}
	if h.offset >= int64(len(h.block)) {
		return 0, io.EOF
	}

	n := copy(p, h.block[h.offset:])
	h.offset += int64(n)
	return n, nil
}

// Write parses a decimal rate. Invalid input is logged and ignored but still
// counts as consumed.
func (h *Handle) Write(p []byte) (int, error) {
	if len(p) > WriteBufferSize {
		h.surface.logger.Warnf("Write of %d bytes exceeds %d byte buffer", len(p), WriteBufferSize)
		return 0, ErrTransfer
	}
	h.surface.setRate(string(p))
	return len(p), nil
}

// Seek moves the read position. Rewinding to the start takes a fresh snapshot
// on the next Read.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = h.offset + offset
	default:
		return h.offset, fmt.Errorf("control: unsupported whence %d", whence)
	}
	if pos < 0 {
		return h.offset, fmt.Errorf("control: negative position %d", pos)
	}
	h.offset = pos
	if pos == 0 {
		h.taken = false
	}
	return pos, nil
}

func (h *Handle) Close() error {
	return nil
}

// WriteRate applies a rate command received from another transport.
func (s *Surface) WriteRate(text string) error {
	h, _ := s.Open()
	defer h.Close()
	_, err := h.Write([]byte(text))
	return err
}

func (s *Surface) setRate(text string) {
	trimmed := strings.TrimSpace(text)
	rate, err := strconv.Atoi(trimmed)
	if err != nil {
		s.logger.Warnf("Ignoring rate %q: not a decimal integer", trimmed)
		return
	}
	if err := s.ctrl.SetRate(rate); err != nil {
		s.logger.Warnf("Ignoring rate %d: %v", rate, err)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// FormatStatus renders the fixed-format status block.
func FormatStatus(st types.Status) string {
	pedestrian := "absent"
	if st.Pedestrian {
		pedestrian = "present"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", st.Mode)
	fmt.Fprintf(&b, "Rate: %d\n", st.Rate)
	fmt.Fprintf(&b, "Red: %s\n", onOff(st.Lights.Red))
	fmt.Fprintf(&b, "Yellow: %s\n", onOff(st.Lights.Yellow))
	fmt.Fprintf(&b, "Green: %s\n", onOff(st.Lights.Green))
	fmt.Fprintf(&b, "Pedestrian: %s\n", pedestrian)

	text := b.String()
	if len(text) > StatusBufferSize {
		text = text[:StatusBufferSize]
	}
	return text
}
