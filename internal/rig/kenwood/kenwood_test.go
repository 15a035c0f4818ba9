package kenwood

import (
	"net"
	"testing"
	"time"

	"github.com/kb9ovo/rttytrx/internal/ioengine"
	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/stretchr/testify/require"
)

type pipePort struct{ net.Conn }

// fakeRig answers a fixed script of commands with canned responses,
// mimicking enough of a Kenwood-HF rig's serial behavior to exercise the
// dialect's framing and parsing without real hardware.
func fakeRig(t *testing.T, conn net.Conn, script map[string]string) {
	t.Helper()
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			cmd := string(buf[:n])
			if resp, ok := script[cmd]; ok {
				conn.Write([]byte(resp))
			}
		}
	}()
}

// buildIF assembles a syntactically valid IF line from field values so
// tests don't have to hand-count fixed-width columns.
func buildIF(freq string, rest ...string) string {
	line := "IF" + freq
	for _, f := range rest {
		line += f
	}
	return line + ";"
}

func TestParseIFKnownLine(t *testing.T) {
	line := buildIF("00014070000", "     ", "+0000", "0", "0", "0", "00", "0", "0", "0", "0", "0", "0", "00", "0")
	snap, err := parseIF(line)
	require.NoError(t, err)
	require.EqualValues(t, 14070000, snap.Frequency)
}

func TestParseIFRejectsShortLine(t *testing.T) {
	_, err := parseIF("IF1234;")
	require.Error(t, err)
}

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []rig.Mode{rig.ModeLSB, rig.ModeUSB, rig.ModeCW, rig.ModeFM, rig.ModeAM, rig.ModeFSK, rig.ModeCWN} {
		wire, err := modeToWire(m)
		require.NoError(t, err)
		require.Equal(t, m, modeFromWire(wire))
	}
}

func TestNewLocksPanelAndEnablesAI(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	fakeRig(t, b, map[string]string{
		"LK1;": "LK1;",
		"AI1;": "AI1;",
		"IF;":  buildIF("00014070000", "     ", "+0000", "0", "0", "0", "00", "0", "0", "0", "0", "0", "0", "00", "0"),
	})

	h := ioengine.Open(&pipePort{a}, ioengine.SemicolonFramer(128), func(ioengine.Response) {})
	defer h.Close()

	d, err := New(h, Config{ResponseTimeout: 2 * time.Second})
	require.NoError(t, err)
	snap, err := d.Snapshot()
	require.NoError(t, err)
	require.EqualValues(t, 14070000, snap.Frequency)
}
