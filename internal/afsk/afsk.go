// Package afsk renders Baudot characters as phase-continuous two-tone
// audio (AFSK): six pre-rendered half-bit PCM waveforms, selected by
// (previous bit, next bit), are concatenated to form the transmitted
// stream.
package afsk

import (
	"math"

	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// Bit is the symbol being transmitted. Unknown is the initial state
// before any bit has been sent; Stop represents the mark-held stop
// condition.
type Bit int

const (
	Unknown Bit = iota
	Mark
	Space
	Stop
)

// Config parameterizes waveform generation.
type Config struct {
	SampleRate      float64
	MarkHz          float64
	SpaceHz         float64
	BaudNumerator   float64
	BaudDenominator float64
}

func (c Config) baud() float64 { return c.BaudNumerator / c.BaudDenominator }

// Modulator holds the six pre-rendered half-bit buffers and the last-bit
// state needed to select the correct transition on the next call. It
// replaces the source's module-global buffers and last_afsk_bit with an
// explicit, constructible value.
type Modulator struct {
	cfg Config

	zeroToMark, markToZero, markToMark    []int16
	zeroToSpace, spaceToZero, spaceToSpace []int16

	last Bit
}

// New renders the six half-bit buffers for the given configuration.
func New(cfg Config) *Modulator {
	m := &Modulator{cfg: cfg, last: Unknown}
	m.regenerate()
	return m
}

// Regenerate rebuilds the waveform buffers, e.g. after a sample-rate or
// tone-frequency change.
func (m *Modulator) Regenerate(cfg Config) {
	m.cfg = cfg
	m.regenerate()
}

func (m *Modulator) regenerate() {
	baud := m.cfg.baud()
	m.zeroToMark = generateSine(m.cfg.MarkHz, m.cfg.SampleRate, baud)
	m.markToZero = generateSine(m.cfg.MarkHz, m.cfg.SampleRate, baud)
	m.markToMark = generateSine(m.cfg.MarkHz, m.cfg.SampleRate, baud)
	m.zeroToSpace = generateSine(m.cfg.SpaceHz, m.cfg.SampleRate, baud)
	m.spaceToZero = generateSine(m.cfg.SpaceHz, m.cfg.SampleRate, baud)
	m.spaceToSpace = generateSine(m.cfg.SpaceHz, m.cfg.SampleRate, baud)

	adjustWave(m.zeroToMark, math.Pi)
	adjustWave(m.markToZero, 0.0)
	adjustWave(m.zeroToSpace, math.Pi)
	adjustWave(m.spaceToZero, 0.0)
	// markToMark and spaceToSpace are mid-stream transitions that never
	// touch zero and so are not windowed.
}

// generateSine renders slightly more than half a symbol time of a sine
// at freq, then trims the tail back to the nearest positive-going zero
// crossing so the buffer's last sample aligns with the next buffer's
// first sample (phase continuity).
func generateSine(freq, sampleRate, baud float64) []int16 {
	wavelen := sampleRate / freq
	nsamp := int(sampleRate/(baud*2)) + 2
	buf := make([]int16, nsamp)
	for i := 0; i < nsamp; i++ {
		buf[i] = int16(math.Sin(float64(i)/wavelen*2*math.Pi) * float64(math.MaxInt16>>1))
	}

	size := nsamp
	found := false
	start := nsamp - 4
	if start < 1 {
		start = 1
	}
	for i := start; i < nsamp; i++ {
		if buf[i] >= 0 && buf[i-1] <= 0 {
			size = i
			found = true
			break
		}
	}
	if !found {
		for i := start - 1; i > 0; i-- {
			if buf[i] >= 0 && buf[i-1] <= 0 {
				size = i
				found = true
				break
			}
		}
	}
	if !found {
		size = nsamp
	}
	return buf[:size]
}

// adjustWave applies a raised-half-cosine envelope in place, tapering
// from unity (startPhase 0) to zero (startPhase pi) or vice versa across
// the buffer.
func adjustWave(buf []int16, startPhase float64) {
	if len(buf) == 0 {
		return
	}
	phaseStep := math.Pi / float64(len(buf))
	phase := startPhase
	for i := range buf {
		buf[i] = int16(float64(buf[i]) * (math.Cos(phase) + 1) / 2)
		phase += phaseStep
	}
}

// ToggleReverse swaps the mark/space buffer triples in place.
func (m *Modulator) ToggleReverse() {
	m.zeroToMark, m.zeroToSpace = m.zeroToSpace, m.zeroToMark
	m.markToZero, m.spaceToZero = m.spaceToZero, m.markToZero
	m.markToMark, m.spaceToSpace = m.spaceToSpace, m.markToMark
}

// SendBit appends the PCM samples for transmitting bit, given the
// previously sent bit, to dst and returns the extended slice. Illegal
// predecessor/bit combinations (mark after unknown, mark after stop,
// sending Unknown) are a Fatal programming error per the component
// design.
func (m *Modulator) SendBit(bit Bit, dst []int16) ([]int16, error) {
	switch bit {
	case Mark:
		switch m.last {
		case Unknown:
			return dst, rigerr.New(rigerr.Fatal, "AFSK: mark after unknown")
		case Stop:
			return dst, rigerr.New(rigerr.Fatal, "AFSK: mark after stop")
		case Space:
			dst = append(dst, m.spaceToZero...)
			dst = append(dst, m.zeroToMark...)
		case Mark:
			dst = append(dst, m.markToMark...)
			dst = append(dst, m.markToMark...)
		}
	case Space:
		switch m.last {
		case Unknown:
			dst = append(dst, m.zeroToSpace...)
			dst = append(dst, m.spaceToSpace...)
		case Space:
			dst = append(dst, m.spaceToSpace...)
			dst = append(dst, m.spaceToSpace...)
		case Stop, Mark:
			dst = append(dst, m.markToZero...)
			dst = append(dst, m.zeroToSpace...)
		}
	case Stop:
		switch m.last {
		case Unknown:
			dst = append(dst, m.zeroToMark...)
			dst = append(dst, m.markToMark...)
			dst = append(dst, m.markToMark...)
		case Space:
			dst = append(dst, m.spaceToZero...)
			dst = append(dst, m.zeroToMark...)
			dst = append(dst, m.markToMark...)
		case Mark, Stop:
			dst = append(dst, m.markToMark...)
			dst = append(dst, m.markToMark...)
			dst = append(dst, m.markToMark...)
		}
	case Unknown:
		return dst, rigerr.New(rigerr.Fatal, "AFSK: sending unknown bit")
	}
	m.last = bit
	return dst, nil
}

// SendChar appends one space (start), five data bits LSB-first, and one
// stop bit for the Baudot code ch.
func (m *Modulator) SendChar(ch byte, dst []int16) ([]int16, error) {
	var err error
	dst, err = m.SendBit(Space, dst)
	if err != nil {
		return dst, err
	}
	for i := 0; i < 5; i++ {
		bit := Space
		if ch&1 != 0 {
			bit = Mark
		}
		dst, err = m.SendBit(bit, dst)
		if err != nil {
			return dst, err
		}
		ch >>= 1
	}
	return m.SendBit(Stop, dst)
}

// EndTx appends the mark-to-zero ramp-down that ends a transmission.
// Ending after Unknown or Space is a Fatal misuse, matching the
// component design's documented postcondition that last_bit is always
// Mark or Stop after a character.
func (m *Modulator) EndTx(dst []int16) ([]int16, error) {
	switch m.last {
	case Unknown:
		return dst, rigerr.New(rigerr.Fatal, "AFSK: ending after unknown bit")
	case Space:
		return dst, rigerr.New(rigerr.Fatal, "AFSK: ending after space")
	case Stop, Mark:
		dst = append(dst, m.markToZero...)
	}
	return dst, nil
}

// LastBit reports the most recently transmitted bit.
func (m *Modulator) LastBit() Bit { return m.last }
