package hardware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-service/internal/logger"
	"traffic-service/internal/types"
)

type write struct {
	channel string
	value   bool
}

type recordingWriter struct {
	writes []write
	failOn string
}

func (w *recordingWriter) WriteDigitalOutput(channel string, value bool) error {
	w.writes = append(w.writes, write{channel, value})
	if channel == w.failOn {
		return errors.New("write failed")
	}
	return nil
}

func newTestSignalHead() (*SignalHead, *recordingWriter) {
	w := &recordingWriter{}
	return NewSignalHead(w, logger.NewLogger(nil, logger.LogLevelNone)), w
}

func TestApplyWritesAllThree(t *testing.T) {
	head, w := newTestSignalHead()

	require.NoError(t, head.Apply(1, 0, 1))
	assert.Equal(t, []write{
		{ChannelRed, true},
		{ChannelYellow, false},
		{ChannelGreen, true},
	}, w.writes)
	assert.Equal(t, types.LightPattern{Red: true, Green: true}, head.Last())
}

func TestApplyIsIdempotent(t *testing.T) {
	head, w := newTestSignalHead()

	require.NoError(t, head.Apply(0, 1, 0))
	require.NoError(t, head.Apply(0, 1, 0))
	assert.Len(t, w.writes, 6)
	assert.Equal(t, w.writes[:3], w.writes[3:])
}

func TestApplyRejectsInvalidLevels(t *testing.T) {
	head, w := newTestSignalHead()
	require.NoError(t, head.Set(types.Only(types.ColorGreen)))
	w.writes = nil

	for _, levels := range [][3]int{{2, 0, 0}, {0, -1, 0}, {0, 0, 7}} {
		err := head.Apply(levels[0], levels[1], levels[2])
		assert.ErrorIs(t, err, ErrInvalidPattern)
	}
	assert.Empty(t, w.writes)
	assert.Equal(t, types.Only(types.ColorGreen), head.Last())
}

func TestApplyKeepsWritingAfterFailure(t *testing.T) {
	head, w := newTestSignalHead()
	w.failOn = ChannelRed

	err := head.Set(types.LightsAll)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidPattern))
	assert.Len(t, w.writes, 3)
}

func TestSetMapsPattern(t *testing.T) {
	head, w := newTestSignalHead()

	require.NoError(t, head.Set(types.LightsOff))
	for _, wr := range w.writes {
		assert.False(t, wr.value, wr.channel)
	}
	assert.Equal(t, types.LightsOff, head.Last())
}
