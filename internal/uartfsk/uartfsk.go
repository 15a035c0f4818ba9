// Package uartfsk drives a UART configured for 5-data-bit, 1.5-stop-bit
// FSK keying: the transceiver's own RF shift is driven by mark/space
// levels on the TxD line, with PTT asserted over an RTS-like modem line.
package uartfsk

import (
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// Fractional-baud ioctls. golang.org/x/sys/unix does not define these
// (they originate on BSD-derived serial drivers); the numeric values
// follow the historic `struct baud_fraction { uint32 bf_numerator,
// bf_denominator; }` layout used by bsdtty. Treated as best-effort: a
// driver lacking support simply returns ENOTTY, which is not fatal here.
const (
	tiocsfbaud = 0x80086459
	tiocgfbaud = 0x40086459
)

type baudFraction struct {
	Numerator   uint32
	Denominator uint32
}

// Config parameterizes UART-FSK transmission.
type Config struct {
	Device          string
	BaudNumerator   uint32
	BaudDenominator uint32
	// CRCode is the Baudot code for carriage return in the active
	// character table, written as the end-of-frame byte on PTT-off. Per
	// the design notes, this must come from the character table, not a
	// hardcoded constant.
	CRCode byte
}

// Transmitter owns an open, configured UART.
type Transmitter struct {
	cfg Config
	f   *os.File
	fd  int
}

// Open configures the UART per the component design: 5 data bits, no
// parity, 1.5 stop bits (CS5|CSTOPB on 8250-compatible UARTs), local
// mode, and the exact baud fraction via TIOCSFBAUD when the driver
// supports it. Modem lines are cleared both before and after
// configuration to avoid a spurious PTT pulse.
func Open(cfg Config) (*Transmitter, error) {
	f, err := os.OpenFile(cfg.Device, os.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, rigerr.New(rigerr.NoDevice, "opening %s: %v", cfg.Device, err)
	}
	fd := int(f.Fd())
	t := &Transmitter{cfg: cfg, f: f, fd: fd}

	if err := t.setModemBits(unix.TIOCM_RTS|unix.TIOCM_DTR, false); err != nil {
		f.Close()
		return nil, rigerr.New(rigerr.NoDevice, "clearing RTS/DTR on %s: %v", cfg.Device, err)
	}

	term, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, rigerr.New(rigerr.NoDevice, "reading termios: %v", err)
	}
	term.Iflag = unix.IGNBRK
	term.Oflag = 0
	term.Lflag = 0
	term.Cflag = unix.CS5 | unix.CSTOPB | unix.CLOCAL | unix.CREAD
	baud := float64(cfg.BaudNumerator) / float64(cfg.BaudDenominator)
	term.Ispeed = uint32(baud)
	term.Ospeed = uint32(baud)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, term); err != nil {
		f.Close()
		return nil, rigerr.New(rigerr.NoDevice, "setting termios: %v", err)
	}

	_ = t.setFractionalBaud(cfg.BaudNumerator, cfg.BaudDenominator) // best effort

	if err := t.setModemBits(unix.TIOCM_RTS|unix.TIOCM_DTR, false); err != nil {
		f.Close()
		return nil, rigerr.New(rigerr.NoDevice, "clearing RTS/DTR after configure: %v", err)
	}
	return t, nil
}

func (t *Transmitter) setFractionalBaud(num, denom uint32) error {
	bf := baudFraction{Numerator: num, Denominator: denom}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), tiocsfbaud, uintptr(unsafe.Pointer(&bf)))
	if errno != 0 {
		return errno
	}
	var check baudFraction
	unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), tiocgfbaud, uintptr(unsafe.Pointer(&check)))
	return nil
}

func (t *Transmitter) setModemBits(bits int, on bool) error {
	cur, err := unix.IoctlGetInt(t.fd, unix.TIOCMGET)
	if err != nil {
		return err
	}
	if on {
		cur |= bits
	} else {
		cur &^= bits
	}
	return unix.IoctlSetInt(t.fd, unix.TIOCMSET, cur)
}

// PTTOn asserts the PTT modem line.
func (t *Transmitter) PTTOn() error {
	if err := t.setModemBits(unix.TIOCM_RTS|unix.TIOCM_DTR, true); err != nil {
		return rigerr.New(rigerr.NoDevice, "asserting PTT: %v", err)
	}
	return nil
}

// WriteByte sends one raw Baudot code byte on the wire.
func (t *Transmitter) WriteByte(b byte) error {
	if _, err := t.f.Write([]byte{b}); err != nil {
		return rigerr.New(rigerr.NoDevice, "writing %s: %v", t.cfg.Device, err)
	}
	return nil
}

// EndTransmission writes the end-of-frame byte, drains the UART, waits
// exactly 7.5 symbol times for the last start bit to clear the wire, and
// releases PTT. The 7.5-symbol wait is load-bearing: without it the last
// character is truncated.
func (t *Transmitter) EndTransmission() error {
	if err := t.WriteByte(t.cfg.CRCode); err != nil {
		return err
	}
	if err := unix.IoctlSetInt(t.fd, unix.TCSBRK, 1); err != nil {
		return rigerr.New(rigerr.NoDevice, "draining %s: %v", t.cfg.Device, err)
	}
	baud := float64(t.cfg.BaudNumerator) / float64(t.cfg.BaudDenominator)
	wait := time.Duration((1.0 / baud) * 7.5 * float64(time.Second))
	time.Sleep(wait)
	return t.setModemBits(unix.TIOCM_RTS|unix.TIOCM_DTR, false)
}

// Close releases the UART.
func (t *Transmitter) Close() error {
	return t.f.Close()
}
