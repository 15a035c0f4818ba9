package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLowpassDCGain(t *testing.T) {
	bq := NewLowpass(1000, 0.707, 48000)
	var y float64
	for i := 0; i < 5000; i++ {
		y = bq.Process(1.0)
	}
	require.InDelta(t, 1.0, y, 0.01, "DC should pass a unity-gain lowpass at unity")
}

func TestMatchedFilterRespondsToMatchingTone(t *testing.T) {
	const sampleRate = 48000.0
	const baud = 45.45
	const tone = 2125.0

	mf := NewMatchedFilter(tone, baud, sampleRate)
	on := NewMatchedFilter(4000.0, baud, sampleRate)

	var matchEnergy, mismatchEnergy float64
	n := mf.Len() * 4
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * tone * float64(i) / sampleRate)
		a := mf.Push(x)
		b := on.Push(x)
		matchEnergy += a * a
		mismatchEnergy += b * b
	}
	require.Greater(t, matchEnergy, mismatchEnergy)
}
