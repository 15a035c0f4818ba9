// Package demod implements the self-synchronizing FSK demodulator: a
// matched-filter energy detector feeding a hunt-for-start state machine
// that recovers 5-bit Baudot frames from a continuous audio stream.
package demod

import (
	"github.com/kb9ovo/rttytrx/internal/baudot"
	"github.com/kb9ovo/rttytrx/internal/dsp"
)

// state is the character-extraction state, matching the data model's
// {AwaitingStart, HuntForStart, Bit(i), AwaitingStop}.
type state int

const (
	stateIdle state = iota
	stateHunt
	stateBit
	stateStop
)

// Symbol-time fractions where the hunt-for-start state probes the
// buffered energy-difference history, per the component design.
const (
	probeStart  = 0.5
	probeBit0   = 1.5
	probeStop1  = 6.5
	probeStop2  = 7.1
	idleTimeout = 1.6 // symbol times with no start seen before HuntForStart
)

// Config parameterizes a Demodulator instance.
type Config struct {
	SampleRate float64
	Baud       float64
	MarkHz     float64
	SpaceHz    float64
	Charset    baudot.Charset
	// EnergyLPCutoffHz is the low-pass cutoff applied to the squared
	// matched-filter outputs before differencing. Defaults to Baud if 0.
	EnergyLPCutoffHz float64
	EnergyLPQ        float64
}

// Demodulator turns a stream of signed audio samples into a stream of
// decoded runes.
type Demodulator struct {
	cfg Config

	markFilt, spaceFilt *dsp.MatchedFilter
	markLP, spaceLP     *dsp.Biquad

	samplesPerSymbol float64
	phaseStep        float64

	st    state
	phase float64

	// Hunt-for-start ring buffer of cv decisions, long enough to hold a
	// full frame (7.1 symbol times) plus margin.
	hist    []float64
	histPos int

	// Bit-sampling state.
	bitIndex   int
	bits       [5]bool
	firstSign  bool
	haveFirst  bool

	figs bool
}

// New constructs a Demodulator for the given configuration.
func New(cfg Config) *Demodulator {
	if cfg.EnergyLPCutoffHz == 0 {
		cfg.EnergyLPCutoffHz = cfg.Baud
	}
	if cfg.EnergyLPQ == 0 {
		cfg.EnergyLPQ = 0.707
	}
	sps := cfg.SampleRate / cfg.Baud
	histLen := int(sps*probeStop2) + 4

	d := &Demodulator{
		cfg:              cfg,
		markFilt:         dsp.NewMatchedFilter(cfg.MarkHz, cfg.Baud, cfg.SampleRate),
		spaceFilt:        dsp.NewMatchedFilter(cfg.SpaceHz, cfg.Baud, cfg.SampleRate),
		markLP:           dsp.NewLowpass(cfg.EnergyLPCutoffHz, cfg.EnergyLPQ, cfg.SampleRate),
		spaceLP:          dsp.NewLowpass(cfg.EnergyLPCutoffHz, cfg.EnergyLPQ, cfg.SampleRate),
		samplesPerSymbol: sps,
		phaseStep:        1.0 / sps,
		st:               stateIdle,
		hist:             make([]float64, histLen),
	}
	return d
}

// ToggleReverse swaps the mark and space filters atomically, per the
// component design's reverse-mode toggle. No sample may be processed
// between detecting the operator's request and this call returning.
func (d *Demodulator) ToggleReverse() {
	d.markFilt, d.spaceFilt = d.spaceFilt, d.markFilt
	d.markLP, d.spaceLP = d.spaceLP, d.markLP
}

// cv returns the instantaneous bit-decision sign for one sample: positive
// means mark, negative means space.
func (d *Demodulator) cv(sample float64) float64 {
	mv := d.markFilt.Push(sample)
	sv := d.spaceFilt.Push(sample)
	emv := d.markLP.Process(mv * mv)
	esv := d.spaceLP.Process(sv * sv)
	return emv - esv
}

func (d *Demodulator) pushHist(v float64) {
	d.hist[d.histPos] = v
	d.histPos = (d.histPos + 1) % len(d.hist)
}

// histAt reads the history value offsetSymbols before "now" (the most
// recently pushed sample).
func (d *Demodulator) histAt(offsetSymbols float64) float64 {
	n := len(d.hist)
	back := int(offsetSymbols * d.samplesPerSymbol)
	idx := ((d.histPos-1-back)%n + n) % n
	return d.hist[idx]
}

// Push feeds one audio sample through the demodulator. ok is true when a
// complete character was decoded; r is that character.
func (d *Demodulator) Push(sample float64) (r rune, ok bool) {
	cv := d.cv(sample)
	d.pushHist(cv)

	switch d.st {
	case stateIdle:
		d.phase += d.phaseStep
		if cv < 0 {
			d.st = stateBit
			// Phase runs from -1 across the rest of the start bit, so
			// bit 0 is sampled in the middle of the first data bit.
			d.phase = d.phaseStep - 1.0
			d.bitIndex = 0
			d.haveFirst = false
			return 0, false
		}
		if d.phase >= idleTimeout {
			d.st = stateHunt
			d.phase = 0
		}
		return 0, false

	case stateHunt:
		// Fixed-lag hunt: "now" is a candidate final stop probe. The
		// candidate start occurred probeStop2 symbol times ago. Gate on
		// the start probe being negative (space), the same signal a
		// mark->space crossing would indicate, before paying for the
		// full seven-probe check.
		if d.histAt(probeStop2-probeStart) >= 0 {
			return 0, false
		}
		var bits [5]bool
		for i := 0; i < 5; i++ {
			bits[i] = d.histAt(probeStop2-(probeBit0+float64(i))) >= 0
		}
		stop1 := d.histAt(probeStop2-probeStop1) >= 0
		stop2 := cv >= 0
		if !stop1 || !stop2 {
			return 0, false
		}
		code := framesToCode(bits)
		d.st = stateIdle
		d.phase = 0
		return d.emit(code)

	case stateBit:
		d.phase += d.phaseStep
		if !d.haveFirst && d.phase >= 0.5 {
			d.firstSign = cv >= 0
			d.haveFirst = true
		}
		if d.haveFirst && d.phase >= 0.97 && d.phase < 1.03 {
			if (cv >= 0) != d.firstSign {
				// Jitter: terminate the bit here and recover timing.
				d.bits[d.bitIndex] = d.firstSign
				d.bitIndex++
				d.phase = 1 - d.phase
				d.haveFirst = false
				if d.bitIndex == 5 {
					d.st = stateStop
					d.phase = 0
				}
				return 0, false
			}
		}
		if d.phase >= 1.0 {
			d.bits[d.bitIndex] = d.firstSign
			d.bitIndex++
			d.phase -= 1.0
			d.haveFirst = false
			if d.bitIndex == 5 {
				d.st = stateStop
			}
		}
		return 0, false

	case stateStop:
		d.phase += d.phaseStep
		if d.phase >= 0.5 && d.phase < 0.5+d.phaseStep {
			if cv < 0 {
				d.st = stateHunt
				d.phase = 0
				return 0, false
			}
		}
		if d.phase >= 1.39 && cv < 0 {
			d.st = stateIdle
			d.phase = 0
			return d.emit(framesToCode(d.bits))
		}
		if d.phase >= 1.0+0.5 { // clean expiry of the stop window
			d.st = stateIdle
			d.phase = 0
			return d.emit(framesToCode(d.bits))
		}
		return 0, false
	}
	return 0, false
}

func framesToCode(bits [5]bool) baudot.Code {
	var c baudot.Code
	for i := 0; i < 5; i++ {
		if bits[i] {
			c |= 1 << uint(i)
		}
	}
	return c
}

// emit applies the LTRS/FIGS shift and unshift-on-space rules and
// produces the decoded rune, if the code is printable.
func (d *Demodulator) emit(code baudot.Code) (rune, bool) {
	switch code {
	case baudot.ShiftToFigs:
		d.figs = true
		return 0, false
	case baudot.ShiftToLtrs:
		d.figs = false
		return 0, false
	}
	asc := baudot.BaudotToAscii(d.cfg.Charset, code, d.figs)
	if code == baudot.Space {
		d.figs = false
	}
	if asc == 0 {
		return 0, false
	}
	return rune(asc), true
}
