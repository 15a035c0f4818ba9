package ioengine

import (
	"time"

	"github.com/pkg/term"

	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// termPort adapts github.com/pkg/term.Term, whose Read blocks with no
// timeout of its own (the teacher's serial_port_open leaves VMIN/VTIME at
// their raw-mode defaults), to the Port interface's SetReadDeadline
// contract by racing each Read against a timer.
//
// TODO: a real deployment should set VTIME on the termios directly via the
// port's file descriptor instead of racing a goroutine against every read;
// term.Term doesn't expose the fd, so this is the portable fallback.
type termPort struct {
	t        *term.Term
	deadline time.Time
}

func (p *termPort) Write(b []byte) (int, error) { return p.t.Write(b) }
func (p *termPort) Close() error                { return p.t.Close() }

func (p *termPort) Read(b []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := p.t.Read(b)
		ch <- result{n, err}
	}()

	wait := time.Until(p.deadline)
	if p.deadline.IsZero() || wait <= 0 {
		r := <-ch
		return r.n, r.err
	}
	select {
	case r := <-ch:
		return r.n, r.err
	case <-time.After(wait):
		return 0, rigerr.ErrTimeout
	}
}

func (p *termPort) SetReadDeadline(t time.Time) error {
	p.deadline = t
	return nil
}

// OpenSerialPort opens device in raw mode at baud, the same open/configure
// sequence as the teacher's serial_port_open: raw mode unconditionally,
// baud rate only applied when it names one of the fixed standard rates
// (0 leaves the port's current speed alone).
func OpenSerialPort(device string, baud int) (Port, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, rigerr.New(rigerr.NoDevice, "opening serial port %s: %v", device, err)
	}

	switch baud {
	case 0:
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, rigerr.New(rigerr.NoDevice, "setting speed %d on %s: %v", baud, device, err)
		}
	default:
		if err := t.SetSpeed(4800); err != nil {
			t.Close()
			return nil, rigerr.New(rigerr.NoDevice, "setting fallback speed on %s: %v", device, err)
		}
	}

	return &termPort{t: t}, nil
}
