package uartfsk

import (
	"testing"

	"github.com/creack/pty"
)

// TestOpenConfiguresPTY exercises the open/configure path against a real
// pseudo-terminal. Modem-line and fractional-baud ioctls are not
// meaningful on a pty, so a failure there is reported as a skip rather
// than a failure: the goal is to exercise the termios code path, not to
// certify PTT behavior, which needs a real UART.
func TestOpenConfiguresPTY(t *testing.T) {
	_, slave, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	defer slave.Close()

	tx, err := Open(Config{
		Device:          slave.Name(),
		BaudNumerator:   4545,
		BaudDenominator: 100,
		CRCode:          0x08,
	})
	if err != nil {
		t.Skipf("pty does not support full UART-FSK configuration: %v", err)
	}
	defer tx.Close()
}
