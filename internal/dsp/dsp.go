// Package dsp provides the linear filter primitives shared by the
// demodulator: a biquad IIR section built from the standard "audio EQ
// cookbook" forms, and a matched FIR filter for tone detection.
package dsp

import "math"

// Biquad is a single IIR section advanced one sample at a time. The five
// coefficients are fixed after construction; only the four delay
// elements (x1, x2, y1, y2) mutate per sample, matching the data model's
// "immutable coefficients, mutable delays" split.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// Process advances the filter by exactly one sample and returns the
// filtered output.
func (bq *Biquad) Process(x float64) float64 {
	y := bq.b0*x + bq.b1*bq.x1 + bq.b2*bq.x2 - bq.a1*bq.y1 - bq.a2*bq.y2
	bq.x2, bq.x1 = bq.x1, x
	bq.y2, bq.y1 = bq.y1, y
	return y
}

// Reset zeroes the delay elements without touching coefficients.
func (bq *Biquad) Reset() {
	bq.x1, bq.x2, bq.y1, bq.y2 = 0, 0, 0, 0
}

func cookbook(f0, q, sampleRate float64) (w0, alpha, cosW0 float64) {
	w0 = 2 * math.Pi * f0 / sampleRate
	alpha = math.Sin(w0) / (2 * q)
	cosW0 = math.Cos(w0)
	return
}

// NewLowpass builds a biquad low-pass section with centre frequency f0
// and quality factor q at the given sample rate.
func NewLowpass(f0, q, sampleRate float64) *Biquad {
	_, alpha, cosW0 := cookbook(f0, q, sampleRate)
	a0 := 1 + alpha
	return &Biquad{
		b0: ((1 - cosW0) / 2) / a0,
		b1: (1 - cosW0) / a0,
		b2: ((1 - cosW0) / 2) / a0,
		a1: (-2 * cosW0) / a0,
		a2: (1 - alpha) / a0,
	}
}

// NewBandpass builds a constant 0 dB peak gain band-pass section (unity
// gain at f0).
func NewBandpass(f0, q, sampleRate float64) *Biquad {
	_, alpha, cosW0 := cookbook(f0, q, sampleRate)
	a0 := 1 + alpha
	return &Biquad{
		b0: alpha / a0,
		b1: 0,
		b2: -alpha / a0,
		a1: (-2 * cosW0) / a0,
		a2: (1 - alpha) / a0,
	}
}

// NewAllpass builds an all-pass section used for phase-only correction.
func NewAllpass(f0, q, sampleRate float64) *Biquad {
	_, alpha, cosW0 := cookbook(f0, q, sampleRate)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 - alpha) / a0,
		b1: (-2 * cosW0) / a0,
		b2: (1 + alpha) / a0,
		a1: (-2 * cosW0) / a0,
		a2: (1 - alpha) / a0,
	}
}

// MatchedFilter correlates incoming samples against one half-symbol of a
// sine wave at a target tone frequency. Coefficients are time-reversed so
// that the running dot product is a straight convolution, and the result
// is scaled by 1/L for unity mid-band gain.
type MatchedFilter struct {
	coef []float64
	hist []float64
	pos  int
}

// NewMatchedFilter builds a matched filter for toneHz at sampleRate, with
// length L = ceil(sampleRate / baud / 2) samples (one half symbol).
func NewMatchedFilter(toneHz, baud, sampleRate float64) *MatchedFilter {
	l := int(math.Ceil(sampleRate/baud/2.0))
	if l < 1 {
		l = 1
	}
	lambda := sampleRate / toneHz
	coef := make([]float64, l)
	for i := 0; i < l; i++ {
		// Time-reversed: coefficient for tap i corresponds to the sample
		// that is (l-1-i) samples old.
		coef[l-1-i] = math.Sin(2 * math.Pi * float64(i) / lambda)
	}
	return &MatchedFilter{
		coef: coef,
		hist: make([]float64, l),
	}
}

// Len reports the number of taps (history length) of the filter.
func (m *MatchedFilter) Len() int { return len(m.coef) }

// Push inserts a new sample and returns the filter's current output.
func (m *MatchedFilter) Push(x float64) float64 {
	l := len(m.hist)
	m.hist[m.pos] = x
	m.pos = (m.pos + 1) % l

	var sum float64
	// hist[pos] is the oldest sample; walk forward from there so tap 0
	// lines up with the oldest sample, matching the time-reversed
	// coefficient ordering above.
	idx := m.pos
	for i := 0; i < l; i++ {
		sum += m.coef[i] * m.hist[idx]
		idx = (idx + 1) % l
	}
	return sum / float64(l)
}
