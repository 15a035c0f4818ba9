package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
# comment line, ignored

[demod]
sample_rate 48000
baud 45.45
mark_hz 2125
space_hz 2295

[afsk]
sample_rate 48000
mark_hz 2125
space_hz 2295
baud_numerator 1000
baud_denominator 22

[uart]
device /dev/ttyS0
baud_numerator 4545
baud_denominator 100

[rig:main]
dialect kenwood
device /dev/ttyUSB0
baud_rate 4800
response_timeout 500ms
min_command_gap 0.05
cache_lifetime 1s
bandplan /etc/rttytrx/20m.yaml

[rigctld:main]
listen 127.0.0.1:4532
rig main
`

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Equal(t, 48000.0, cfg.Demod.SampleRate)
	require.Equal(t, 45.45, cfg.Demod.Baud)

	require.Equal(t, "/dev/ttyS0", cfg.UART.Device)
	require.EqualValues(t, 4545, cfg.UART.BaudNumerator)

	require.Len(t, cfg.Rigs, 1)
	require.Equal(t, "main", cfg.Rigs[0].Name)
	require.Equal(t, "kenwood", cfg.Rigs[0].Dialect)
	require.Equal(t, 500*time.Millisecond, cfg.Rigs[0].ResponseTimeout)
	require.Equal(t, 50*time.Millisecond, cfg.Rigs[0].MinCommandGap)

	require.Len(t, cfg.RigCtlds, 1)
	require.Equal(t, "127.0.0.1:4532", cfg.RigCtlds[0].Listen)
	require.Equal(t, "main", cfg.RigCtlds[0].Rig)
}

func TestParseRejectsUnknownKeyword(t *testing.T) {
	_, err := Parse(strings.NewReader("[demod]\nbogus 1\n"))
	require.Error(t, err)
}

func TestParseRejectsKeywordOutsideSection(t *testing.T) {
	_, err := Parse(strings.NewReader("baud 45\n"))
	require.Error(t, err)
}

func TestParseRejectsRigKeywordOutsideSection(t *testing.T) {
	_, err := Parse(strings.NewReader("[demod]\nsample_rate 48000\n[rig:x]\ndialect kenwood\n[afsk]\nmark_hz 2125\ndialect foo\n"))
	require.Error(t, err)
}
