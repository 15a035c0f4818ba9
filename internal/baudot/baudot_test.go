package baudot

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAKnownCode(t *testing.T) {
	code, ok := AsciiToBaudot(ITA2, 'A', false)
	require.True(t, ok)
	require.Equal(t, Code(0x03), code)
}

func TestRoundTripKnownChars(t *testing.T) {
	// Every printable character actually present on a page round-trips
	// through its own page.
	for cs := ITA2; cs <= ITA2S; cs++ {
		table := tables[cs]
		for page := 0; page < 2; page++ {
			figs := page == 1
			for i := 0; i < 0x20; i++ {
				asc := table[page*0x20+i]
				if asc == 0 {
					continue // NUL is not a representable character
				}
				code, ok := AsciiToBaudot(cs, asc, figs)
				require.True(t, ok, "charset %v figs=%v asc=%q", cs, figs, asc)
				require.Equal(t, asc, BaudotToAscii(cs, code, figs),
					"charset %v figs=%v asc=%q", cs, figs, asc)
			}
		}
	}
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cs := Charset(rapid.IntRange(0, 2).Draw(t, "charset"))
		figs := rapid.Bool().Draw(t, "figs")
		page := 0
		if figs {
			page = 1
		}
		i := rapid.IntRange(0, 0x1F).Draw(t, "code")
		asc := tables[cs][page*0x20+i]
		if asc == 0 {
			t.Skip("NUL has no stable inverse")
		}
		code, ok := AsciiToBaudot(cs, asc, figs)
		if !ok {
			t.Fatalf("charset %v figs=%v: %q not found", cs, figs, asc)
		}
		got := BaudotToAscii(cs, code, figs)
		if got != asc {
			t.Fatalf("charset %v figs=%v: round trip %q -> %v -> %q", cs, figs, asc, code, got)
		}
	})
}

func TestSpaceCodeRendersAsSpace(t *testing.T) {
	require.Equal(t, Code(0x04), Space)
	require.Equal(t, byte(' '), BaudotToAscii(ITA2, Space, false))
}
