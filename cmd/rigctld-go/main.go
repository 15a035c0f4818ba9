// rigctld-go is a standalone network rig-control server: it opens one
// transceiver per configured [rig:NAME] section and exposes each through
// its paired [rigctld:NAME] listener, speaking the rigctld line protocol.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/brutella/dnssd"

	"github.com/kb9ovo/rttytrx/internal/bandplan"
	"github.com/kb9ovo/rttytrx/internal/config"
	"github.com/kb9ovo/rttytrx/internal/ioengine"
	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/kb9ovo/rttytrx/internal/rig/kenwood"
	"github.com/kb9ovo/rttytrx/internal/rig/yaesu"
	"github.com/kb9ovo/rttytrx/internal/rigctld"

	"github.com/charmbracelet/log"
)

func main() {
	var configFile = pflag.StringP("config", "c", "rttytrx.conf", "Configuration file name.")
	var advertise = pflag.BoolP("advertise", "m", false, "Advertise listeners over mDNS (_rigctl._tcp).")
	var debug = pflag.BoolP("debug", "d", false, "Enable debug-level logging.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: rigctld-go [options]")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		return
	}

	logger := log.New(os.Stderr)
	if *debug {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}

	rigs := map[string]rig.Rig{}
	limits := map[string]rig.Limits{}
	for _, rs := range cfg.Rigs {
		r, err := openRig(rs)
		if err != nil {
			logger.Fatal("opening rig", "name", rs.Name, "err", err)
		}
		defer r.Close()

		var l rig.Limits
		if rs.BandplanFile != "" {
			l, err = bandplan.Load(rs.BandplanFile)
			if err != nil {
				logger.Fatal("loading bandplan", "name", rs.Name, "err", err)
			}
		}
		limits[rs.Name] = l
		// Wrapping here, not just inside rigctld.New, means any other
		// direct caller of this rig.Rig also gets the band-limit guard.
		rigs[rs.Name] = rig.NewLimitedRig(r, l)
	}

	if len(cfg.RigCtlds) == 0 {
		logger.Fatal("no [rigctld:NAME] sections configured")
	}

	var responders []dnssd.Responder
	for _, rcs := range cfg.RigCtlds {
		r, ok := rigs[rcs.Rig]
		if !ok {
			logger.Fatal("rigctld section references unknown rig", "rigctld", rcs.Name, "rig", rcs.Rig)
		}

		srv := rigctld.New(r, limits[rcs.Rig], logger)
		if err := srv.Listen(rcs.Listen); err != nil {
			logger.Fatal("starting rigctld listener", "name", rcs.Name, "err", err)
		}
		defer srv.Close()
		logger.Info("rigctld listening", "name", rcs.Name, "addr", rcs.Listen)

		if *advertise {
			if resp, err := advertiseService(rcs.Name, rcs.Listen); err != nil {
				logger.Warn("mDNS advertisement failed", "name", rcs.Name, "err", err)
			} else {
				responders = append(responders, resp)
			}
		}
	}

	select {}
}

func openRig(rs config.RigSection) (rig.Rig, error) {
	port, err := ioengine.OpenSerialPort(rs.Device, rs.BaudRate)
	if err != nil {
		return nil, err
	}

	switch rs.Dialect {
	case "kenwood":
		h := ioengine.Open(port, ioengine.SemicolonFramer(128), func(ioengine.Response) {})
		return kenwood.New(h, kenwood.Config{
			ResponseTimeout: rs.ResponseTimeout,
			CacheLifetime:   rs.CacheLifetime,
		})
	case "yaesu":
		h := ioengine.Open(port, ioengine.FixedLengthFramer(5), func(ioengine.Response) {})
		return yaesu.New(h, yaesu.Config{ResponseTimeout: rs.ResponseTimeout})
	default:
		port.Close()
		return nil, fmt.Errorf("unknown rig dialect %q", rs.Dialect)
	}
}

// advertiseService is the optional mDNS analogue of a "rigctld -T" style
// announcement: purely additive, never required for the line protocol
// itself to work.
func advertiseService(name, addr string) (dnssd.Responder, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing listen port %q: %w", portStr, err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, err
	}

	cfg := dnssd.Config{
		Name: name,
		Type: "_rigctl._tcp",
		Port: port,
		Host: host,
	}
	service, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := responder.Add(service); err != nil {
		return nil, err
	}

	go responder.Respond(context.Background())
	return responder, nil
}
