package yaesu

import (
	"net"
	"testing"
	"time"

	"github.com/kb9ovo/rttytrx/internal/ioengine"
	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/stretchr/testify/require"
)

type pipePort struct{ net.Conn }

func sink(conn net.Conn) {
	go func() {
		buf := make([]byte, 256)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()
}

func TestFillBCDFrequency(t *testing.T) {
	buf := make([]byte, 4)
	fillBCD(buf, 8, true, 1407000) // 14070000 / 10
	require.Equal(t, []byte{0x01, 0x40, 0x70, 0x00}, buf)
}

func TestRoundFreqRoundsToNearestTen(t *testing.T) {
	require.EqualValues(t, 14070000, roundFreq(14070003))
	require.EqualValues(t, 14070010, roundFreq(14070007))
}

func TestSetFrequencyTracksLocalState(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	sink(b)

	h := ioengine.Open(&pipePort{a}, ioengine.FixedLengthFramer(5), func(ioengine.Response) {})
	defer h.Close()

	d, err := New(h, Config{ResponseTimeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, d.SetFrequency(rig.VFOUnknown, 14070000))
	freq, err := d.GetFrequency(rig.VFOUnknown)
	require.NoError(t, err)
	require.EqualValues(t, 14070000, freq)
}

func TestSetSplitFrequencyThenGet(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	sink(b)

	h := ioengine.Open(&pipePort{a}, ioengine.FixedLengthFramer(5), func(ioengine.Response) {})
	defer h.Close()

	d, err := New(h, Config{ResponseTimeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, d.SetSplitFrequency(14070000, 14073000))
	rx, tx, err := d.GetSplitFrequency()
	require.NoError(t, err)
	require.EqualValues(t, 14070000, rx)
	require.EqualValues(t, 14073000, tx)
}

func TestGetSMeterReturnsZeroWhilePTT(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	sink(b)

	h := ioengine.Open(&pipePort{a}, ioengine.FixedLengthFramer(5), func(ioengine.Response) {})
	defer h.Close()

	d, err := New(h, Config{ResponseTimeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, d.SetPTT(true))

	level, err := d.GetSMeter()
	require.NoError(t, err)
	require.Equal(t, 0, level)
}

var _ rig.Rig = (*Dialect)(nil)
