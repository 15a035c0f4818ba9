package demod

import (
	"testing"

	"github.com/kb9ovo/rttytrx/internal/baudot"
	"github.com/stretchr/testify/require"
)

func TestFramesToCodeMatchesA(t *testing.T) {
	// 'A' is Baudot 0x03, LSB first: 1,1,0,0,0.
	bits := [5]bool{true, true, false, false, false}
	require.Equal(t, baudot.Code(0x03), framesToCode(bits))
}

func TestNewSizesHistoryForFullFrame(t *testing.T) {
	d := New(Config{
		SampleRate: 8000,
		Baud:       45.45,
		MarkHz:     2125,
		SpaceHz:    2295,
		Charset:    baudot.ITA2,
	})
	require.GreaterOrEqual(t, len(d.hist), int(d.samplesPerSymbol*probeStop2))
}

func TestEmitHandlesShiftsAndUnshiftOnSpace(t *testing.T) {
	d := New(Config{
		SampleRate: 8000,
		Baud:       45.45,
		MarkHz:     2125,
		SpaceHz:    2295,
		Charset:    baudot.ITA2,
	})

	_, ok := d.emit(baudot.ShiftToFigs)
	require.False(t, ok)
	require.True(t, d.figs)

	r, ok := d.emit(baudot.Space)
	require.True(t, ok)
	require.Equal(t, ' ', r)
	require.False(t, d.figs, "space must unshift back to LTRS")
}
