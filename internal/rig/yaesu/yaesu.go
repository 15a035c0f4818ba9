// Package yaesu implements the Yaesu binary-CAT dialect: fixed 5-byte
// command frames (4 parameter bytes, 1 opcode byte), with no single
// "give me everything" status query. Unlike Kenwood-HF, state the rig
// doesn't echo back (current VFO frequency, mode) has to be tracked
// locally from the commands this process itself issued.
package yaesu

import (
	"time"

	"github.com/kb9ovo/rttytrx/internal/ioengine"
	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// opcode values from the rig's command reference; only the subset this
// engine drives is listed.
const (
	opCATOn            = 0x00
	opCATOff           = 0x80
	opFrequency        = 0x01
	opMode             = 0x07
	opTX               = 0x08
	opRX               = 0x88
	opSplitPlus        = 0x49
	opSplitMinus       = 0x09
	opSplitOff         = 0x89
	opSplitOffset      = 0xF9
	opFullDuplexOn     = 0x0E
	opFullDuplexOff    = 0x8E
	opFullDuplexRXMode = 0x17
	opFullDuplexTXMode = 0x27
	opFullDuplexRXFreq = 0x1E
	opFullDuplexTXFreq = 0x2E
	opTestSquelch      = 0xE7
	opTestSMeter       = 0xF7
)

// wireMode is the rig's mode encoding, distinct from rig.Mode.
type wireMode byte

const (
	wireLSB  wireMode = 0x00
	wireUSB  wireMode = 0x01
	wireCW   wireMode = 0x02
	wireFM   wireMode = 0x08
	wireCWN  wireMode = 0x82
	wireFMN  wireMode = 0x88
)

func modeToWire(m rig.Mode) (wireMode, error) {
	switch m {
	case rig.ModeLSB:
		return wireLSB, nil
	case rig.ModeUSB:
		return wireUSB, nil
	case rig.ModeCW:
		return wireCW, nil
	case rig.ModeCWN:
		return wireCWN, nil
	case rig.ModeFM:
		return wireFM, nil
	case rig.ModeFMN:
		return wireFMN, nil
	default:
		return 0, rigerr.New(rigerr.NotSupported, "yaesu: mode %s has no wire encoding", m)
	}
}

func modeFromWire(w wireMode) rig.Mode {
	switch w {
	case wireLSB:
		return rig.ModeLSB
	case wireUSB:
		return rig.ModeUSB
	case wireCW:
		return rig.ModeCW
	case wireCWN:
		return rig.ModeCWN
	case wireFM:
		return rig.ModeFM
	case wireFMN:
		return rig.ModeFMN
	default:
		return rig.ModeUnknown
	}
}

// roundFreq snaps freq to the nearest 10 Hz, matching the rig's minimum
// tuning step in this command set.
func roundFreq(freq uint64) uint64 {
	return ((freq + 5) / 10) * 10
}

// fillBCD packs val as nybbles decimal digits into the low-order bytes of
// buf, most-significant nybble first; when big is true the most
// significant nybble holds whatever value remains as one binary nybble
// (0-15) instead of a single decimal digit, matching the rig's
// frequency encoding.
func fillBCD(buf []byte, nybbles int, big bool, val uint64) {
	for i := nybbles; i > 0; i-- {
		bIdx := (i - 1) / 2
		var digit byte
		if i == 1 && big {
			digit = byte(val)
		} else {
			digit = byte(val % 10)
		}
		val /= 10
		if i%2 == 1 {
			buf[bIdx] = (buf[bIdx] &^ 0xf0) | (digit << 4)
		} else {
			buf[bIdx] = (buf[bIdx] &^ 0x0f) | digit
		}
	}
}

func freqFrame(op byte, freqDiv10 uint64) []byte {
	frame := make([]byte, 5)
	fillBCD(frame[:4], 8, true, freqDiv10)
	frame[4] = op
	return frame
}

func bareFrame(op byte) []byte {
	return []byte{0, 0, 0, 0, op}
}

func modeFrame(op byte, m wireMode) []byte {
	return []byte{0, 0, 0, byte(m), op}
}

// Config parameterizes a Yaesu binary-CAT dialect instance.
type Config struct {
	ResponseTimeout time.Duration
}

// Dialect drives a Yaesu binary-CAT rig over an ioengine.Handle. State not
// echoed by the rig is tracked here from the last command this process
// sent, matching the source's yaesu_bincat struct.
type Dialect struct {
	io  *ioengine.Handle
	cfg Config

	freq         uint64
	mode         wireMode
	ptt          bool
	splitOffset  int64 // freq_tx - freq_rx; 0 means not split
	duplexRX     uint64
	duplexTX     uint64
	duplexRXMode wireMode
	duplexTXMode wireMode
}

// New wraps an already-open transport in the Yaesu binary-CAT dialect and
// enters CAT mode.
func New(h *ioengine.Handle, cfg Config) (*Dialect, error) {
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = time.Second
	}
	d := &Dialect{io: h, cfg: cfg}
	if err := d.write(bareFrame(opCATOn)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dialect) write(frame []byte) error {
	return d.io.Write(frame)
}

// query sends a 5-byte command frame expecting a 1-byte-of-interest
// response at responseIdx within the fixed 5-byte reply.
func (d *Dialect) query(frame []byte, responseIdx int) (byte, error) {
	resp, err := d.io.Send(frame, nil, 0, d.cfg.ResponseTimeout)
	if err != nil {
		return 0, err
	}
	if len(resp.Data) <= responseIdx {
		return 0, rigerr.New(rigerr.ProtocolError, "yaesu: short response frame")
	}
	return resp.Data[responseIdx], nil
}

func (d *Dialect) clearDuplex() error {
	if d.duplexRX != 0 || d.duplexTX != 0 {
		if err := d.write(bareFrame(opFullDuplexOff)); err != nil {
			return err
		}
		d.duplexRX, d.duplexTX = 0, 0
	}
	return nil
}

func (d *Dialect) clearSplit() error {
	if d.splitOffset != 0 {
		if err := d.write(bareFrame(opSplitOff)); err != nil {
			return err
		}
		d.splitOffset = 0
	}
	return nil
}

// SetFrequency sets the single operating frequency and clears any active
// duplex/split state, matching the source's write order exactly: duplex
// off, then split off, then the frequency itself.
func (d *Dialect) SetFrequency(vfo rig.VFO, freq uint64) error {
	freq = roundFreq(freq)
	if err := d.clearDuplex(); err != nil {
		return err
	}
	if err := d.clearSplit(); err != nil {
		return err
	}
	if err := d.write(freqFrame(opFrequency, freq/10)); err != nil {
		return err
	}
	d.freq = freq
	return nil
}

func (d *Dialect) GetFrequency(vfo rig.VFO) (uint64, error) {
	return d.freq, nil
}

// SetSplitFrequency sets the RX frequency directly, then dials in the
// TX offset and direction (plus/minus) the rig's split commands expect,
// rather than an independent TX frequency register.
func (d *Dialect) SetSplitFrequency(rxFreq, txFreq uint64) error {
	rxFreq = roundFreq(rxFreq)
	txFreq = roundFreq(txFreq)
	if err := d.clearDuplex(); err != nil {
		return err
	}
	if err := d.write(freqFrame(opFrequency, rxFreq/10)); err != nil {
		return err
	}
	if txFreq < rxFreq {
		if err := d.write(freqFrame(opSplitOffset, (rxFreq-txFreq)/10)); err != nil {
			return err
		}
		if err := d.write(bareFrame(opSplitMinus)); err != nil {
			return err
		}
	} else {
		if err := d.write(freqFrame(opSplitOffset, (txFreq-rxFreq)/10)); err != nil {
			return err
		}
		if err := d.write(bareFrame(opSplitPlus)); err != nil {
			return err
		}
	}
	d.freq = rxFreq
	d.splitOffset = int64(txFreq) - int64(rxFreq)
	return nil
}

func (d *Dialect) GetSplitFrequency() (uint64, uint64, error) {
	if d.splitOffset == 0 {
		return 0, 0, rigerr.New(rigerr.NotSupported, "yaesu: rig is not in split")
	}
	return d.freq, uint64(int64(d.freq) + d.splitOffset), nil
}

// SetDuplex drives the rig's independent-RX/TX-frequency-and-mode full
// duplex feature, used for cross-band or offset repeater-style operation.
func (d *Dialect) SetDuplex(rxFreq uint64, rxMode rig.Mode, txFreq uint64, txMode rig.Mode) error {
	rxFreq = roundFreq(rxFreq)
	txFreq = roundFreq(txFreq)
	rxWire, err := modeToWire(rxMode)
	if err != nil {
		return err
	}
	txWire, err := modeToWire(txMode)
	if err != nil {
		return err
	}
	if err := d.write(bareFrame(opFullDuplexOff)); err != nil {
		return err
	}
	if err := d.clearSplit(); err != nil {
		return err
	}
	if err := d.write(modeFrame(opFullDuplexRXMode, rxWire)); err != nil {
		return err
	}
	if err := d.write(modeFrame(opFullDuplexTXMode, txWire)); err != nil {
		return err
	}
	if err := d.write(freqFrame(opFullDuplexRXFreq, rxFreq/10)); err != nil {
		return err
	}
	if err := d.write(freqFrame(opFullDuplexTXFreq, txFreq/10)); err != nil {
		return err
	}
	if err := d.write(bareFrame(opFullDuplexOn)); err != nil {
		return err
	}
	d.freq = rxFreq
	d.splitOffset = 0
	d.duplexRX, d.duplexTX = rxFreq, txFreq
	d.duplexRXMode, d.duplexTXMode = rxWire, txWire
	return nil
}

func (d *Dialect) GetDuplex() (uint64, rig.Mode, uint64, rig.Mode, error) {
	if d.duplexRX == 0 || d.duplexTX == 0 {
		return 0, rig.ModeUnknown, 0, rig.ModeUnknown, rigerr.New(rigerr.NotSupported, "yaesu: rig is not in full duplex")
	}
	return d.duplexRX, modeFromWire(d.duplexRXMode), d.duplexTX, modeFromWire(d.duplexTXMode), nil
}

func (d *Dialect) SetMode(m rig.Mode) error {
	wire, err := modeToWire(m)
	if err != nil {
		return err
	}
	if err := d.write(modeFrame(opMode, wire)); err != nil {
		return err
	}
	d.mode = wire
	return nil
}

func (d *Dialect) GetMode() (rig.Mode, error) {
	return modeFromWire(d.mode), nil
}

// SetVFO is not addressable on this dialect: every command targets
// whichever VFO the front panel currently selects.
func (d *Dialect) SetVFO(rig.VFO) error {
	return rigerr.New(rigerr.NotSupported, "yaesu: no VFO-select command in this dialect")
}

func (d *Dialect) GetVFO() (rig.VFO, error) {
	return rig.VFOUnknown, rigerr.New(rigerr.NotSupported, "yaesu: no VFO-select command in this dialect")
}

func (d *Dialect) SetPTT(tx bool) error {
	op := byte(opRX)
	if tx {
		op = opTX
	}
	if err := d.write(bareFrame(op)); err != nil {
		return err
	}
	d.ptt = tx
	return nil
}

func (d *Dialect) GetPTT() (bool, error) { return d.ptt, nil }

// SetRIT/SetXIT: this command set has no RIT/XIT frames at all.
func (d *Dialect) SetRIT(int, bool) error {
	return rigerr.New(rigerr.NotSupported, "yaesu: no RIT command in this dialect")
}

func (d *Dialect) GetRIT() (int, bool, error) {
	return 0, false, rigerr.New(rigerr.NotSupported, "yaesu: no RIT command in this dialect")
}

func (d *Dialect) SetXIT(int, bool) error {
	return rigerr.New(rigerr.NotSupported, "yaesu: no XIT command in this dialect")
}

func (d *Dialect) GetXIT() (int, bool, error) {
	return 0, false, rigerr.New(rigerr.NotSupported, "yaesu: no XIT command in this dialect")
}

func (d *Dialect) SetReverse(bool) error {
	return rigerr.New(rigerr.NotSupported, "yaesu: no rig-side reverse command in this dialect")
}

func (d *Dialect) GetReverse() (bool, error) {
	return false, rigerr.New(rigerr.NotSupported, "yaesu: no rig-side reverse command in this dialect")
}

// GetSquelch reads the squelch-test command: bit 0x80 of the second
// response byte indicates squelch is open.
func (d *Dialect) GetSquelch() (bool, error) {
	b, err := d.query(bareFrame(opTestSquelch), 1)
	if err != nil {
		return false, err
	}
	return b&0x80 != 0, nil
}

// GetSMeter reads the S-meter test command. While transmitting the rig's
// meter reads power output, not signal strength, so PTT-on is reported as
// zero, matching the source.
func (d *Dialect) GetSMeter() (int, error) {
	if d.ptt {
		return 0, nil
	}
	b, err := d.query(bareFrame(opTestSMeter), 1)
	if err != nil {
		return 0, err
	}
	level := int(b) - 0x20
	if level < 0 {
		level = 0
	}
	return level, nil
}

// Snapshot assembles an IfSnapshot purely from locally tracked state:
// this dialect has no equivalent of Kenwood's "IF" query.
func (d *Dialect) Snapshot() (rig.IfSnapshot, error) {
	return rig.IfSnapshot{
		Frequency: d.freq,
		Mode:      modeFromWire(d.mode),
		TX:        d.ptt,
		Split:     d.splitOffset != 0,
	}, nil
}

// Close exits CAT mode.
func (d *Dialect) Close() error {
	d.write(bareFrame(opCATOff))
	return d.io.Close()
}

var _ rig.Rig = (*Dialect)(nil)
