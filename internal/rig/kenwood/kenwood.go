// Package kenwood implements the Kenwood-HF CAT dialect: ASCII,
// semicolon-terminated two- or three-letter commands, shared across
// Kenwood, Elecraft, and similar rigs. Field widths and the "IF" status
// line layout are fixed by the protocol, not negotiated; the IF layout is
// kept as a declarative column table, and commands are formatted per
// operation with fixed-width Sprintf verbs.
package kenwood

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kb9ovo/rttytrx/internal/ioengine"
	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// parseSW decodes the command alphabet's 1-digit boolean: '0' or '1'.
func parseSW(b byte) bool { return b == '1' }

// ifField describes one fixed-width column of an "IF" response.
type ifField struct {
	name  string
	width int
}

// ifLayout is the column layout of the 15-field IF status line, in wire
// order, immediately following the two-byte "IF" prefix.
var ifLayout = []ifField{
	{"frequency", 11},
	{"step", 5},
	{"rit", 5},
	{"ritOn", 1},
	{"xitOn", 1},
	{"bank", 1},
	{"channel", 2},
	{"tx", 1},
	{"mode", 1},
	{"function", 1},
	{"scan", 1},
	{"split", 1},
	{"toneOn", 1},
	{"toneFreq", 2},
	{"offset", 1},
}

func ifFieldWidth() int {
	n := 0
	for _, f := range ifLayout {
		n += f.width
	}
	return n
}

// Config parameterizes a Kenwood-HF dialect instance.
type Config struct {
	ResponseTimeout    time.Duration
	InterCommandDelay  time.Duration
	CacheLifetime      time.Duration
	// ExtraDelay lists per-command additional delay, keyed by the
	// two/three-letter command mnemonic (e.g. "FA", "MD"), mirroring the
	// source's kenwood_hf_set_cmd_delays table for commands whose firmware
	// needs settle time beyond the ordinary inter-command gap.
	ExtraDelay map[string]time.Duration
}

// Dialect drives a Kenwood-HF rig over an ioengine.Handle.
type Dialect struct {
	io     *ioengine.Handle
	cfg    Config
	cache  *rig.Cache
	rate   *rig.RateLimiter
	curVFO rig.VFO
}

// New wraps an already-open transport in the Kenwood-HF dialect and
// performs the startup sequence: lock the front panel, enable
// auto-information mode so status updates arrive unsolicited, then prime
// the status cache with one IF query.
func New(h *ioengine.Handle, cfg Config) (*Dialect, error) {
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = time.Second
	}
	if cfg.CacheLifetime == 0 {
		cfg.CacheLifetime = time.Second
	}
	d := &Dialect{
		io:    h,
		cfg:   cfg,
		cache: rig.NewCache(cfg.CacheLifetime),
		rate:  rig.NewRateLimiter(cfg.InterCommandDelay, cfg.ExtraDelay),
	}
	if _, err := d.exchange("LK1;", "LK"); err != nil {
		return nil, err
	}
	if _, err := d.exchange("AI1;", "AI"); err != nil {
		return nil, err
	}
	if _, err := d.refreshIF(); err != nil {
		// Not every rig answers IF identically at startup; carry on with
		// an empty cache rather than failing dialect construction.
		d.cache.Invalidate()
	}
	return d, nil
}

func (d *Dialect) exchange(cmd, matchPrefix string) (string, error) {
	d.rate.Wait(matchPrefix)
	resp, err := d.io.Send([]byte(cmd), []byte(matchPrefix), 0, d.cfg.ResponseTimeout)
	if err != nil {
		return "", err
	}
	return string(resp.Data), nil
}

func (d *Dialect) send(cmd string) error {
	d.rate.Wait(cmd[:2])
	return d.io.Write([]byte(cmd))
}

// HandleUnsolicited is the AsyncHandler a caller should register with
// ioengine.Open: unsolicited "IF" lines, delivered because AI mode was
// enabled, refresh the cache without a round trip.
func (d *Dialect) HandleUnsolicited(resp ioengine.Response) {
	if len(resp.Data) >= 2 && resp.Data[0] == 'I' && resp.Data[1] == 'F' {
		if snap, err := parseIF(string(resp.Data)); err == nil {
			d.cache.Set(snap)
		}
	}
}

func parseIF(line string) (rig.IfSnapshot, error) {
	body := strings.TrimSuffix(line, ";")
	if len(body) < 2+ifFieldWidth() || body[:2] != "IF" {
		return rig.IfSnapshot{}, rigerr.New(rigerr.ProtocolError, "kenwood: malformed IF line %q", line)
	}
	body = body[2:]
	fields := make(map[string]string, len(ifLayout))
	pos := 0
	for _, f := range ifLayout {
		fields[f.name] = body[pos : pos+f.width]
		pos += f.width
	}

	freq, err := strconv.ParseUint(strings.TrimSpace(fields["frequency"]), 10, 64)
	if err != nil {
		return rig.IfSnapshot{}, rigerr.New(rigerr.ProtocolError, "kenwood: bad frequency in IF: %v", err)
	}
	rit, err := strconv.Atoi(strings.TrimSpace(fields["rit"]))
	if err != nil {
		return rig.IfSnapshot{}, rigerr.New(rigerr.ProtocolError, "kenwood: bad RIT offset in IF: %v", err)
	}
	bank, _ := strconv.Atoi(fields["bank"])
	channel, _ := strconv.Atoi(fields["channel"])
	toneFreq, _ := strconv.Atoi(fields["toneFreq"])
	offset, _ := strconv.Atoi(fields["offset"])

	return rig.IfSnapshot{
		Frequency:  freq,
		RITOffset:  rit,
		RITOn:      parseSW(fields["ritOn"][0]),
		XITOn:      parseSW(fields["xitOn"][0]),
		Bank:       bank,
		Channel:    channel,
		TX:         parseSW(fields["tx"][0]),
		Mode:       modeFromWire(fields["mode"][0]),
		VFO:        vfoFromWire(fields["function"][0]),
		Scanning:   parseSW(fields["scan"][0]),
		Split:      parseSW(fields["split"][0]),
		ToneOn:     parseSW(fields["toneOn"][0]),
		ToneNumber: toneFreq,
		Offset:     offset,
	}, nil
}

func modeFromWire(b byte) rig.Mode {
	switch b {
	case '1':
		return rig.ModeLSB
	case '2':
		return rig.ModeUSB
	case '3':
		return rig.ModeCW
	case '4':
		return rig.ModeFM
	case '5':
		return rig.ModeAM
	case '6':
		return rig.ModeFSK
	case '7':
		return rig.ModeCWN
	default:
		return rig.ModeUnknown
	}
}

func modeToWire(m rig.Mode) (byte, error) {
	switch m {
	case rig.ModeLSB:
		return '1', nil
	case rig.ModeUSB:
		return '2', nil
	case rig.ModeCW:
		return '3', nil
	case rig.ModeFM:
		return '4', nil
	case rig.ModeAM:
		return '5', nil
	case rig.ModeFSK:
		return '6', nil
	case rig.ModeCWN:
		return '7', nil
	default:
		return 0, rigerr.New(rigerr.NotSupported, "kenwood: mode %s has no wire encoding", m)
	}
}

func vfoFromWire(b byte) rig.VFO {
	switch b {
	case '0':
		return rig.VFOA
	case '1':
		return rig.VFOB
	case '2':
		return rig.VFOMemory
	case '3':
		return rig.VFOMain // "COM" channel, closest analogue
	default:
		return rig.VFOUnknown
	}
}

func vfoToWire(v rig.VFO) (byte, error) {
	switch v {
	case rig.VFOA:
		return '0', nil
	case rig.VFOB:
		return '1', nil
	case rig.VFOMemory:
		return '2', nil
	default:
		return 0, rigerr.New(rigerr.InvalidArgument, "kenwood: VFO %s cannot be selected directly", v)
	}
}

func freqCmd(vfoCmd string, freq uint64) string {
	return fmt.Sprintf("%s%011d;", vfoCmd, freq)
}

func (d *Dialect) refreshIF() (rig.IfSnapshot, error) {
	line, err := d.exchange("IF;", "IF")
	if err != nil {
		return rig.IfSnapshot{}, err
	}
	snap, err := parseIF(line)
	if err != nil {
		return rig.IfSnapshot{}, err
	}
	d.cache.Set(snap)
	d.curVFO = snap.VFO
	return snap, nil
}

// Snapshot serves the cached status, refreshing from the rig on a miss.
func (d *Dialect) Snapshot() (rig.IfSnapshot, error) {
	if snap, ok := d.cache.Get(); ok {
		return snap, nil
	}
	return d.refreshIF()
}

func vfoCommand(vfo rig.VFO) (string, error) {
	switch vfo {
	case rig.VFOA, rig.VFOUnknown:
		return "FA", nil
	case rig.VFOB:
		return "FB", nil
	default:
		return "", rigerr.New(rigerr.NotSupported, "kenwood: no frequency command for VFO %s", vfo)
	}
}

// SetFrequency sets the frequency of vfo (or the active VFO, if
// rig.VFOUnknown) and clears any active split/RIT/XIT, matching the
// source's invariant that a frequency change leaves the rig in plain
// simplex receive on the new frequency.
func (d *Dialect) SetFrequency(vfo rig.VFO, freq uint64) error {
	snap, _ := d.Snapshot()
	cmd := "FA"
	if vfo == rig.VFOUnknown {
		if snap.VFO == rig.VFOB {
			cmd = "FB"
		}
	} else {
		var err error
		cmd, err = vfoCommand(vfo)
		if err != nil {
			return err
		}
	}
	if err := d.send(freqCmd(cmd, freq)); err != nil {
		return err
	}
	if snap.Split {
		d.send("SP0;")
	}
	if snap.RITOn {
		d.send("RT0;")
	}
	if snap.XITOn {
		d.send("XT0;")
	}
	d.cache.Invalidate()
	return nil
}

// GetFrequency reads VFO A or B directly, or the cached "current" VFO
// frequency when vfo is rig.VFOUnknown.
func (d *Dialect) GetFrequency(vfo rig.VFO) (uint64, error) {
	if vfo == rig.VFOUnknown {
		snap, err := d.Snapshot()
		return snap.Frequency, err
	}
	cmd, err := vfoCommand(vfo)
	if err != nil {
		return 0, err
	}
	line, err := d.exchange(cmd+";", cmd)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(line[2:len(line)-1]), 10, 64)
}

// SetSplitFrequency puts the rig into split operation with rxFreq on the
// currently-selected VFO and txFreq on the other one.
func (d *Dialect) SetSplitFrequency(rxFreq, txFreq uint64) error {
	snap, err := d.refreshIF()
	if err != nil {
		return err
	}
	rxCmd, txCmd := "FA", "FB"
	if snap.VFO == rig.VFOB {
		rxCmd, txCmd = "FB", "FA"
	}
	if err := d.send(freqCmd(rxCmd, rxFreq)); err != nil {
		return err
	}
	if err := d.send(freqCmd(txCmd, txFreq)); err != nil {
		return err
	}
	if snap.RITOn {
		d.send("RT0;")
	}
	if snap.XITOn {
		d.send("XT0;")
	}
	if !snap.Split {
		d.send("SP1;")
	}
	d.cache.Invalidate()
	return nil
}

// GetSplitFrequency reads both VFOs and reports them as (rx, tx); it
// returns NotSupported if the rig isn't currently in split.
func (d *Dialect) GetSplitFrequency() (uint64, uint64, error) {
	snap, err := d.refreshIF()
	if err != nil {
		return 0, 0, err
	}
	if !snap.Split {
		return 0, 0, rigerr.New(rigerr.NotSupported, "kenwood: rig is not in split")
	}
	rxCmd, txCmd := "FA", "FB"
	if snap.VFO == rig.VFOB {
		rxCmd, txCmd = "FB", "FA"
	}
	rxLine, err := d.exchange(rxCmd+";", rxCmd)
	if err != nil {
		return 0, 0, err
	}
	txLine, err := d.exchange(txCmd+";", txCmd)
	if err != nil {
		return 0, 0, err
	}
	rx, err := strconv.ParseUint(strings.TrimSpace(rxLine[2:len(rxLine)-1]), 10, 64)
	if err != nil {
		return 0, 0, rigerr.New(rigerr.ProtocolError, "kenwood: %v", err)
	}
	tx, err := strconv.ParseUint(strings.TrimSpace(txLine[2:len(txLine)-1]), 10, 64)
	if err != nil {
		return 0, 0, rigerr.New(rigerr.ProtocolError, "kenwood: %v", err)
	}
	return rx, tx, nil
}

// SetDuplex is not part of the Kenwood-HF protocol surface: repeater-style
// offsets are handled by the OS/offset commands on a handful of VHF/UHF
// models, not the common HF command set this dialect targets.
func (d *Dialect) SetDuplex(uint64, rig.Mode, uint64, rig.Mode) error {
	return rigerr.New(rigerr.NotSupported, "kenwood: duplex operation not supported on this dialect")
}

func (d *Dialect) GetDuplex() (uint64, rig.Mode, uint64, rig.Mode, error) {
	return 0, rig.ModeUnknown, 0, rig.ModeUnknown, rigerr.New(rigerr.NotSupported, "kenwood: duplex operation not supported on this dialect")
}

// SetMode sets the demodulation/emission mode on the currently selected
// VFO.
func (d *Dialect) SetMode(m rig.Mode) error {
	wire, err := modeToWire(m)
	if err != nil {
		return err
	}
	if err := d.send(fmt.Sprintf("MD%c;", wire)); err != nil {
		return err
	}
	d.cache.Invalidate()
	return nil
}

func (d *Dialect) GetMode() (rig.Mode, error) {
	snap, err := d.Snapshot()
	return snap.Mode, err
}

// SetVFO switches the active VFO/memory function. Per the source, this
// invalidates any cached IF snapshot because many other fields (split,
// RIT) can change as a side effect.
func (d *Dialect) SetVFO(v rig.VFO) error {
	wire, err := vfoToWire(v)
	if err != nil {
		return err
	}
	if err := d.send(fmt.Sprintf("FN%c;", wire)); err != nil {
		return err
	}
	d.curVFO = v
	d.cache.Invalidate()
	return nil
}

func (d *Dialect) GetVFO() (rig.VFO, error) {
	snap, err := d.Snapshot()
	return snap.VFO, err
}

// SetPTT keys or unkeys the transmitter. Toggling PTT can change a lot of
// other state (frequency readback during VOX rigs, for instance), so the
// cache is invalidated exactly as in the source.
func (d *Dialect) SetPTT(tx bool) error {
	cmd := "RX;"
	if tx {
		cmd = "TX;"
	}
	if err := d.send(cmd); err != nil {
		return err
	}
	d.cache.Invalidate()
	return nil
}

func (d *Dialect) GetPTT() (bool, error) {
	snap, err := d.Snapshot()
	return snap.TX, err
}

// SetRIT enables or disables RIT. Kenwood-HF offers no "set RIT to exactly
// N Hz" command, only up/down step commands (RU/RD) relative to whatever
// offset is already dialed in, so offsetHz is honored only as "clear to
// zero first" via RC when disabling.
func (d *Dialect) SetRIT(offsetHz int, on bool) error {
	if !on {
		if err := d.send("RC;"); err != nil {
			return err
		}
		if err := d.send("RT0;"); err != nil {
			return err
		}
		d.cache.Invalidate()
		return nil
	}
	if err := d.send("RT1;"); err != nil {
		return err
	}
	d.cache.Invalidate()
	return nil
}

func (d *Dialect) GetRIT() (int, bool, error) {
	snap, err := d.Snapshot()
	return snap.RITOffset, snap.RITOn, err
}

func (d *Dialect) SetXIT(offsetHz int, on bool) error {
	if !on {
		if err := d.send("RC;"); err != nil {
			return err
		}
		if err := d.send("XT0;"); err != nil {
			return err
		}
		d.cache.Invalidate()
		return nil
	}
	if err := d.send("XT1;"); err != nil {
		return err
	}
	d.cache.Invalidate()
	return nil
}

func (d *Dialect) GetXIT() (int, bool, error) {
	snap, err := d.Snapshot()
	return snap.RITOffset, snap.XITOn, err
}

// SetReverse is not exposed by the common Kenwood-HF command set covered
// here (it is audio-path, not rig, on most FSK-capable models); callers
// needing a "reverse" concept get it from the demodulator instead.
func (d *Dialect) SetReverse(bool) error {
	return rigerr.New(rigerr.NotSupported, "kenwood: no rig-side reverse command in this dialect")
}

func (d *Dialect) GetReverse() (bool, error) {
	return false, rigerr.New(rigerr.NotSupported, "kenwood: no rig-side reverse command in this dialect")
}

func (d *Dialect) GetSquelch() (bool, error) {
	return false, rigerr.New(rigerr.NotSupported, "kenwood: squelch status query not implemented for this dialect")
}

func (d *Dialect) GetSMeter() (int, error) {
	return 0, rigerr.New(rigerr.NotSupported, "kenwood: S-meter query not implemented for this dialect")
}

var _ rig.Rig = (*Dialect)(nil)

// Close releases the front panel and drops out of auto-information mode.
// Most rigs reject the "LO" lock-out command; failure there is ignored,
// matching the source's documented "that's OK though."
func (d *Dialect) Close() error {
	d.send("LO;")
	d.send("LK0;")
	d.send("AI0;")
	return d.io.Close()
}
