package afsk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		SampleRate:      48000,
		MarkHz:          2125,
		SpaceHz:         2295,
		BaudNumerator:   4545,
		BaudDenominator: 100,
	}
}

func TestSendCharLeavesLastBitStopOrMark(t *testing.T) {
	m := New(testConfig())
	var buf []int16
	buf, err := m.SendChar(0x03, buf) // 'A'
	require.NoError(t, err)
	require.NotEmpty(t, buf)
	require.Equal(t, Stop, m.LastBit())
}

func TestMarkAfterUnknownIsFatal(t *testing.T) {
	m := New(testConfig())
	_, err := m.SendBit(Mark, nil)
	require.Error(t, err)
}

func TestEndTxAfterSpaceIsFatal(t *testing.T) {
	m := New(testConfig())
	var buf []int16
	buf, err := m.SendBit(Space, buf)
	require.NoError(t, err)
	_, err = m.EndTx(buf)
	require.Error(t, err)
}

func TestPhaseContinuityAcrossBuffers(t *testing.T) {
	m := New(testConfig())
	maxIntra := func(buf []int16) int {
		max := 0
		for i := 1; i < len(buf); i++ {
			d := int(buf[i]) - int(buf[i-1])
			if d < 0 {
				d = -d
			}
			if d > max {
				max = d
			}
		}
		return max
	}

	buffers := [][]int16{m.zeroToMark, m.markToZero, m.markToMark, m.zeroToSpace, m.spaceToZero, m.spaceToSpace}
	maxStep := 0
	for _, b := range buffers {
		if s := maxIntra(b); s > maxStep {
			maxStep = s
		}
	}

	var stream []int16
	var err error
	for _, bit := range []Bit{Space, Mark, Mark, Space, Stop} {
		stream, err = m.SendBit(bit, stream)
		require.NoError(t, err)
	}
	require.True(t, len(stream) > 1)
	for i := 1; i < len(stream); i++ {
		d := int(stream[i]) - int(stream[i-1])
		if d < 0 {
			d = -d
		}
		require.LessOrEqual(t, d, maxStep+1, "adjacent-sample step exceeded intra-buffer maximum at %d", i)
	}
}

func TestToggleReverseSwapsBuffers(t *testing.T) {
	m := New(testConfig())
	origMark := m.zeroToMark
	origSpace := m.zeroToSpace
	m.ToggleReverse()
	require.Equal(t, origMark, m.zeroToSpace)
	require.Equal(t, origSpace, m.zeroToMark)
}
