// rttyterm is an interactive RTTY terminal: it demodulates audio from a
// sound card into Baudot characters, optionally keys a UART-FSK
// transmitter from typed input, and optionally drives a transceiver over a
// Kenwood or Yaesu CAT dialect.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kb9ovo/rttytrx/internal/afsk"
	"github.com/kb9ovo/rttytrx/internal/audio"
	"github.com/kb9ovo/rttytrx/internal/bandplan"
	"github.com/kb9ovo/rttytrx/internal/baudot"
	"github.com/kb9ovo/rttytrx/internal/config"
	"github.com/kb9ovo/rttytrx/internal/demod"
	"github.com/kb9ovo/rttytrx/internal/ioengine"
	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/kb9ovo/rttytrx/internal/rig/kenwood"
	"github.com/kb9ovo/rttytrx/internal/rig/yaesu"
	"github.com/kb9ovo/rttytrx/internal/rigctld"
	"github.com/kb9ovo/rttytrx/internal/uartfsk"

	logpkg "github.com/charmbracelet/log"
)

func main() {
	var configFile = pflag.StringP("config", "c", "rttytrx.conf", "Configuration file name.")
	var ttyDevice = pflag.StringP("tty", "t", "", "Override the configured UART-FSK transmit device.")
	var reverse = pflag.BoolP("reverse", "r", false, "Swap mark/space tones (LSB vs USB convention).")
	var startRigctld = pflag.BoolP("rigctld", "R", false, "Also start the configured rigctld listeners.")
	var debug = pflag.BoolP("debug", "d", false, "Enable debug-level logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rttyterm [options]")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	logger := logpkg.New(os.Stderr)
	if *debug {
		logger.SetLevel(logpkg.DebugLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}
	if *ttyDevice != "" {
		cfg.UART.Device = *ttyDevice
	}

	charset := baudot.USTTY
	if cfg.UART.CRCode == 0 {
		// Carriage return is code 8 in every Baudot table variant this
		// package defines; the LTRS page is identical across all three.
		cfg.UART.CRCode = 0x08
	}

	markHz, spaceHz := cfg.Demod.MarkHz, cfg.Demod.SpaceHz
	if *reverse {
		markHz, spaceHz = spaceHz, markHz
	}
	demodCfg := cfg.Demod
	demodCfg.MarkHz, demodCfg.SpaceHz = markHz, spaceHz
	demodCfg.Charset = charset
	demodulator := demod.New(demodCfg)

	var capture *audio.CaptureStream
	var playback *audio.PlaybackStream
	if err := audio.Init(); err != nil {
		logger.Warn("portaudio unavailable, running without live audio", "err", err)
	} else {
		defer audio.Terminate()
		capture, err = audio.OpenCapture(cfg.Demod.SampleRate, 1024)
		if err != nil {
			logger.Warn("opening capture device", "err", err)
		} else {
			defer capture.Close()
		}
		playback, err = audio.OpenPlayback(cfg.AFSK.SampleRate, 1024)
		if err != nil {
			logger.Warn("opening playback device", "err", err)
		} else {
			defer playback.Close()
		}
	}

	modCfg := cfg.AFSK
	modCfg.MarkHz, modCfg.SpaceHz = markHz, spaceHz
	modulator := afsk.New(modCfg)

	var tx *uartfsk.Transmitter
	if cfg.UART.Device != "" {
		tx, err = uartfsk.Open(cfg.UART)
		if err != nil {
			logger.Warn("opening UART-FSK transmitter", "err", err)
		} else {
			defer tx.Close()
		}
	}

	rigs := map[string]rig.Rig{}
	limits := map[string]rig.Limits{}
	for _, rs := range cfg.Rigs {
		r, err := openRig(rs)
		if err != nil {
			logger.Warn("opening rig", "name", rs.Name, "err", err)
			continue
		}
		defer r.Close()

		var l rig.Limits
		if rs.BandplanFile != "" {
			if loaded, err := bandplan.Load(rs.BandplanFile); err != nil {
				logger.Warn("loading bandplan", "name", rs.Name, "err", err)
			} else {
				l = loaded
			}
		}
		limits[rs.Name] = l
		// Wrapping here, not just inside rigctld.New, means any other
		// direct caller of this rig.Rig also gets the band-limit guard.
		rigs[rs.Name] = rig.NewLimitedRig(r, l)
	}

	if *startRigctld {
		for _, rcs := range cfg.RigCtlds {
			r, ok := rigs[rcs.Rig]
			if !ok {
				logger.Warn("rigctld section references unknown rig", "rigctld", rcs.Name, "rig", rcs.Rig)
				continue
			}
			srv := rigctld.New(r, limits[rcs.Rig], logger)
			if err := srv.Listen(rcs.Listen); err != nil {
				logger.Warn("starting rigctld listener", "name", rcs.Name, "err", err)
				continue
			}
			defer srv.Close()
			logger.Info("rigctld listening", "name", rcs.Name, "addr", rcs.Listen)
		}
	}

	logger.Info("rttyterm ready", "baud", cfg.Demod.Baud, "mark_hz", markHz, "space_hz", spaceHz)

	if capture != nil {
		go runCaptureLoop(capture, demodulator, logger)
	}
	go runTransmitLoop(os.Stdin, charset, modulator, playback, tx, logger)
	select {}
}

// runTransmitLoop reads one line of typed input at a time, converts it to
// Baudot (tracking letters/figures shift state across the whole session),
// and keys whichever transmit path is configured: the UART-FSK
// transmitter if one is open, otherwise AFSK audio on the playback
// device. Each line is one over: the UART path asserts PTT before the
// line and releases it via EndTransmission after; the AFSK path appends
// the ramp-down via EndTx before playing.
func runTransmitLoop(stdin *os.File, cs baudot.Charset, mod *afsk.Modulator, playback *audio.PlaybackStream, tx *uartfsk.Transmitter, logger *logpkg.Logger) {
	if tx == nil && playback == nil {
		return
	}
	if playback == nil || tx != nil {
		mod = nil
	}
	inFigs := false
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := scanner.Text() + "\r\n"

		if tx != nil {
			if err := tx.PTTOn(); err != nil {
				logger.Warn("asserting PTT", "err", err)
				continue
			}
		}

		var samples []int16
		for i := 0; i < len(line); i++ {
			code, wantFigs, ok := baudot.EncodeChar(cs, line[i])
			if !ok {
				continue
			}
			if wantFigs != inFigs {
				shift := baudot.ShiftToLtrs
				if wantFigs {
					shift = baudot.ShiftToFigs
				}
				samples = sendShift(tx, mod, samples, shift, logger)
				inFigs = wantFigs
			}
			samples = sendCode(tx, mod, samples, code, logger)
		}

		if tx != nil {
			if err := tx.EndTransmission(); err != nil {
				logger.Warn("ending transmission", "err", err)
			}
		}
		if mod != nil && playback != nil {
			var err error
			samples, err = mod.EndTx(samples)
			if err != nil {
				logger.Warn("ending AFSK transmission", "err", err)
			} else if err := playback.Write(samples); err != nil {
				logger.Warn("playing AFSK audio", "err", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading stdin", "err", err)
	}
}

func sendShift(tx *uartfsk.Transmitter, mod *afsk.Modulator, samples []int16, shift baudot.Code, logger *logpkg.Logger) []int16 {
	if tx != nil {
		if err := tx.WriteByte(byte(shift)); err != nil {
			logger.Warn("writing shift code", "err", err)
		}
	}
	if mod != nil {
		var err error
		samples, err = mod.SendChar(byte(shift), samples)
		if err != nil {
			logger.Warn("encoding shift code", "err", err)
		}
	}
	return samples
}

func sendCode(tx *uartfsk.Transmitter, mod *afsk.Modulator, samples []int16, code baudot.Code, logger *logpkg.Logger) []int16 {
	if tx != nil {
		if err := tx.WriteByte(byte(code)); err != nil {
			logger.Warn("writing character", "err", err)
		}
	}
	if mod != nil {
		var err error
		samples, err = mod.SendChar(byte(code), samples)
		if err != nil {
			logger.Warn("encoding character", "err", err)
		}
	}
	return samples
}

// runCaptureLoop feeds captured audio samples into the demodulator one at a
// time, printing every decoded character as it arrives.
func runCaptureLoop(capture *audio.CaptureStream, d *demod.Demodulator, logger *logpkg.Logger) {
	for {
		samples, err := capture.Read()
		if err != nil {
			logger.Warn("audio capture stopped", "err", err)
			return
		}
		for _, s := range samples {
			if r, ok := d.Push(float64(s)); ok {
				fmt.Print(string(r))
			}
		}
	}
}

func openRig(rs config.RigSection) (rig.Rig, error) {
	h, err := openIOHandle(rs)
	if err != nil {
		return nil, err
	}
	switch rs.Dialect {
	case "kenwood":
		return kenwood.New(h, kenwood.Config{
			ResponseTimeout: rs.ResponseTimeout,
			CacheLifetime:   rs.CacheLifetime,
		})
	case "yaesu":
		return yaesu.New(h, yaesu.Config{ResponseTimeout: rs.ResponseTimeout})
	default:
		return nil, fmt.Errorf("unknown rig dialect %q", rs.Dialect)
	}
}

func openIOHandle(rs config.RigSection) (*ioengine.Handle, error) {
	port, err := ioengine.OpenSerialPort(rs.Device, rs.BaudRate)
	if err != nil {
		return nil, err
	}
	var framer ioengine.Framer
	switch rs.Dialect {
	case "kenwood":
		framer = ioengine.SemicolonFramer(128)
	case "yaesu":
		framer = ioengine.FixedLengthFramer(5)
	default:
		framer = ioengine.SemicolonFramer(128)
	}
	return ioengine.Open(port, framer, func(ioengine.Response) {}), nil
}
