// afsksend renders text typed on stdin (or given with --text) to AFSK audio
// and plays it on the default sound device, or writes raw signed 16-bit PCM
// to a file with --out.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/kb9ovo/rttytrx/internal/afsk"
	"github.com/kb9ovo/rttytrx/internal/audio"
	"github.com/kb9ovo/rttytrx/internal/baudot"
)

func main() {
	var text = pflag.StringP("text", "T", "", "Text to send. If empty, reads from stdin.")
	var sampleRate = pflag.Float64P("sample-rate", "s", 48000, "Audio sample rate in Hz.")
	var markHz = pflag.Float64P("mark-hz", "m", 2125, "Mark tone frequency in Hz.")
	var spaceHz = pflag.Float64P("space-hz", "p", 2295, "Space tone frequency in Hz.")
	var baudNum = pflag.Float64P("baud-numerator", "n", 1000, "Baud rate numerator (e.g. 1000/22 = 45.45 baud).")
	var baudDen = pflag.Float64P("baud-denominator", "d", 22, "Baud rate denominator.")
	var outFile = pflag.StringP("out", "o", "", "Write raw signed 16-bit PCM here instead of playing it.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: afsksend [options]")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	input := *text
	if input == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "reading stdin:", err)
			os.Exit(1)
		}
		input = string(data)
	}

	mod := afsk.New(afsk.Config{
		SampleRate:      *sampleRate,
		MarkHz:          *markHz,
		SpaceHz:         *spaceHz,
		BaudNumerator:   *baudNum,
		BaudDenominator: *baudDen,
	})

	var samples []int16
	var inFigs bool
	for i := 0; i < len(input); i++ {
		asc := input[i]

		code, wantFigs, ok := baudot.EncodeChar(baudot.USTTY, asc)
		if !ok {
			continue // character has no Baudot representation; dropped, not fatal
		}

		var err error
		if wantFigs != inFigs {
			shift := baudot.ShiftToLtrs
			if wantFigs {
				shift = baudot.ShiftToFigs
			}
			samples, err = mod.SendChar(byte(shift), samples)
			if err != nil {
				fmt.Fprintln(os.Stderr, "encoding shift code:", err)
				os.Exit(1)
			}
			inFigs = wantFigs
		}

		samples, err = mod.SendChar(byte(code), samples)
		if err != nil {
			fmt.Fprintln(os.Stderr, "encoding character", asc, ":", err)
			os.Exit(1)
		}
	}
	samples, err := mod.EndTx(samples)
	if err != nil {
		fmt.Fprintln(os.Stderr, "finishing transmission:", err)
		os.Exit(1)
	}

	if *outFile != "" {
		if err := writePCM(*outFile, samples); err != nil {
			fmt.Fprintln(os.Stderr, "writing output:", err)
			os.Exit(1)
		}
		return
	}

	if err := play(*sampleRate, samples); err != nil {
		fmt.Fprintln(os.Stderr, "playing audio:", err)
		os.Exit(1)
	}
}

func writePCM(path string, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()
	for _, s := range samples {
		if err := w.WriteByte(byte(s)); err != nil {
			return err
		}
		if err := w.WriteByte(byte(s >> 8)); err != nil {
			return err
		}
	}
	return nil
}

func play(sampleRate float64, samples []int16) error {
	if err := audio.Init(); err != nil {
		return err
	}
	defer audio.Terminate()

	out, err := audio.OpenPlayback(sampleRate, 1024)
	if err != nil {
		return err
	}
	defer out.Close()

	return out.Write(samples)
}
