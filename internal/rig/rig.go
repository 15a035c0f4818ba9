// Package rig defines the dialect-independent rig-control model: the
// frequency/mode/VFO vocabulary, the cached status snapshot, band-limit
// enforcement, and the Rig interface each transceiver dialect implements.
//
// The original C engine dispatched through a struct of function pointers
// (one vtable per rig family) selected at open time. Go expresses that
// same "one engine, many backends" shape as an interface with one
// implementation per dialect package; callers hold a rig.Rig and never see
// which concrete dialect answers it.
package rig

import (
	"sync"
	"time"

	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// VFO names a receiver's selectable frequency register.
type VFO int

const (
	VFOUnknown VFO = iota
	VFOA
	VFOB
	VFOMemory
	VFOMain
	VFOSub
)

func (v VFO) String() string {
	switch v {
	case VFOA:
		return "A"
	case VFOB:
		return "B"
	case VFOMemory:
		return "MEM"
	case VFOMain:
		return "Main"
	case VFOSub:
		return "Sub"
	default:
		return "unknown"
	}
}

// Mode is the demodulation/emission mode selected on the rig.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeLSB
	ModeUSB
	ModeCW
	ModeCWR
	ModeCWN
	ModeCWRN
	ModeAM
	ModeFM
	ModeFMN
	ModeFSK
	ModeFSKR
)

func (m Mode) String() string {
	switch m {
	case ModeLSB:
		return "LSB"
	case ModeUSB:
		return "USB"
	case ModeCW:
		return "CW"
	case ModeCWR:
		return "CWR"
	case ModeCWN:
		return "CWN"
	case ModeCWRN:
		return "CWRN"
	case ModeAM:
		return "AM"
	case ModeFM:
		return "FM"
	case ModeFMN:
		return "FMN"
	case ModeFSK:
		return "FSK"
	case ModeFSKR:
		return "FSKR"
	default:
		return "unknown"
	}
}

// IfSnapshot is the decoded equivalent of a Kenwood "IF" response, or the
// synthesized equivalent a dialect without a single do-everything query
// command (Yaesu binary CAT) assembles from its own cached state. It is
// the data that both the virtual-VFO cache and the rigctld server's "\\get_info"
// style commands are served from.
type IfSnapshot struct {
	Frequency   uint64
	RITOffset   int
	RITOn       bool
	XITOn       bool
	Bank        int
	Channel     int
	TX          bool
	Mode        Mode
	VFO         VFO
	Scanning    bool
	Split       bool
	ToneOn      bool
	ToneNumber  int
	Offset      int
	Taken       time.Time
}

// Cache holds the most recently observed IfSnapshot and serves it to
// callers within its lifetime without round-tripping to the rig. A zero
// Cache is not valid; use NewCache.
type Cache struct {
	mu       sync.Mutex
	lifetime time.Duration
	snap     IfSnapshot
	valid    bool
}

// NewCache returns a Cache whose snapshots are considered fresh for
// lifetime after being Set.
func NewCache(lifetime time.Duration) *Cache {
	return &Cache{lifetime: lifetime}
}

// Get returns the cached snapshot and true if it is still within its
// lifetime.
func (c *Cache) Get() (IfSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || time.Since(c.snap.Taken) > c.lifetime {
		return IfSnapshot{}, false
	}
	return c.snap, true
}

// Set records snap, stamping it with the current time if Taken is zero.
func (c *Cache) Set(snap IfSnapshot) {
	if snap.Taken.IsZero() {
		snap.Taken = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.valid = true
}

// Invalidate forces the next Get to miss, e.g. after issuing a command
// that changes rig state the cache doesn't update incrementally.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// BandLimit names one contiguous frequency range, inclusive, a rig is
// permitted to tune within.
type BandLimit struct {
	Name string
	Low  uint64
	High uint64
}

func (b BandLimit) contains(freq uint64) bool {
	return freq >= b.Low && freq <= b.High
}

// Limits is the set of bands a given rig/region configuration allows for
// receive and (a usually stricter subset) for transmit.
type Limits struct {
	RX []BandLimit
	TX []BandLimit
}

func anyContains(limits []BandLimit, freq uint64) bool {
	if len(limits) == 0 {
		return true // an empty list means "no restriction configured"
	}
	for _, l := range limits {
		if l.contains(freq) {
			return true
		}
	}
	return false
}

// CheckRX reports whether freq falls within a configured receive band.
func (l Limits) CheckRX(freq uint64) bool { return anyContains(l.RX, freq) }

// CheckTX reports whether freq falls within a configured transmit band.
func (l Limits) CheckTX(freq uint64) bool { return anyContains(l.TX, freq) }

// RateLimiter enforces the minimum spacing between successive commands a
// rig's CAT firmware needs to avoid dropping characters, plus an optional
// one-shot extra delay for specific slow commands (e.g. a VFO write that
// triggers a PLL relock). The extra delay a command incurs is paid by
// whichever command is sent next, not by the command itself: it models
// settling time the firmware needs after issuing the slow command, not a
// property of resending that same command again.
type RateLimiter struct {
	mu      sync.Mutex
	minGap  time.Duration
	last    time.Time
	extra   map[string]time.Duration
	pending time.Duration
}

// NewRateLimiter returns a limiter enforcing minGap between any two
// commands, with per-command-ID additional delays from extra.
func NewRateLimiter(minGap time.Duration, extra map[string]time.Duration) *RateLimiter {
	return &RateLimiter{minGap: minGap, extra: extra}
}

// Wait blocks until it is safe to issue the next command with the given
// ID, then records the time of issue. Any extra delay left pending by the
// previously issued command is consumed here and cleared; the delay
// configured for cmdID itself, if any, becomes pending for whichever
// command is sent next.
func (r *RateLimiter) Wait(cmdID string) {
	r.mu.Lock()
	since := time.Since(r.last)
	wait := r.minGap - since
	if wait < 0 {
		wait = 0
	}
	wait += r.pending
	r.pending = 0
	next := r.extra[cmdID]
	r.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	r.mu.Lock()
	r.last = time.Now()
	r.pending = next
	r.mu.Unlock()
}

// Rig is the operation set every transceiver-control dialect implements.
// It mirrors the original vtable's verbs; callers never type-switch on the
// concrete dialect.
type Rig interface {
	Close() error

	SetFrequency(vfo VFO, freq uint64) error
	GetFrequency(vfo VFO) (uint64, error)

	SetSplitFrequency(rxFreq, txFreq uint64) error
	GetSplitFrequency() (rxFreq, txFreq uint64, err error)

	SetDuplex(rxFreq uint64, rxMode Mode, txFreq uint64, txMode Mode) error
	GetDuplex() (rxFreq uint64, rxMode Mode, txFreq uint64, txMode Mode, err error)

	SetMode(m Mode) error
	GetMode() (Mode, error)

	SetVFO(v VFO) error
	GetVFO() (VFO, error)

	SetPTT(tx bool) error
	GetPTT() (bool, error)

	SetRIT(offsetHz int, on bool) error
	GetRIT() (offsetHz int, on bool, err error)
	SetXIT(offsetHz int, on bool) error
	GetXIT() (offsetHz int, on bool, err error)

	SetReverse(on bool) error
	GetReverse() (bool, error)

	GetSquelch() (open bool, err error)
	GetSMeter() (level int, err error)

	Snapshot() (IfSnapshot, error)
}

// LimitedRig wraps a Rig with the band-limit enforcement the original
// engine performs one layer below the dialect vtable, in its generic API
// wrapper, rather than inside each dialect: set_frequency checks the new
// frequency against the receive band list, set_split_frequency and
// set_duplex check their RX leg against the receive list and their TX leg
// against the transmit list. A dialect is never consulted about a
// frequency outside the configured limits.
type LimitedRig struct {
	Rig
	Limits Limits
}

// NewLimitedRig wraps r so every SetFrequency/SetSplitFrequency/SetDuplex
// call is checked against limits before reaching r.
func NewLimitedRig(r Rig, limits Limits) *LimitedRig {
	return &LimitedRig{Rig: r, Limits: limits}
}

func (l *LimitedRig) SetFrequency(vfo VFO, freq uint64) error {
	if !l.Limits.CheckRX(freq) {
		return rigerr.New(rigerr.InvalidArgument, "frequency %d outside configured band limits", freq)
	}
	return l.Rig.SetFrequency(vfo, freq)
}

func (l *LimitedRig) SetSplitFrequency(rxFreq, txFreq uint64) error {
	if !l.Limits.CheckRX(rxFreq) {
		return rigerr.New(rigerr.InvalidArgument, "receive frequency %d outside configured band limits", rxFreq)
	}
	if !l.Limits.CheckTX(txFreq) {
		return rigerr.New(rigerr.InvalidArgument, "transmit frequency %d outside configured band limits", txFreq)
	}
	return l.Rig.SetSplitFrequency(rxFreq, txFreq)
}

func (l *LimitedRig) SetDuplex(rxFreq uint64, rxMode Mode, txFreq uint64, txMode Mode) error {
	if !l.Limits.CheckRX(rxFreq) {
		return rigerr.New(rigerr.InvalidArgument, "receive frequency %d outside configured band limits", rxFreq)
	}
	if !l.Limits.CheckTX(txFreq) {
		return rigerr.New(rigerr.InvalidArgument, "transmit frequency %d outside configured band limits", txFreq)
	}
	return l.Rig.SetDuplex(rxFreq, rxMode, txFreq, txMode)
}
