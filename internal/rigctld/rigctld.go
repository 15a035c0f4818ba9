// Package rigctld implements a rigctld-compatible line protocol server: a
// TCP listener that exposes a rig.Rig to network clients (loggers, digital
// mode programs, remote control heads) as a sequence of short one-letter
// commands, one per line, each answered either with the requested value or
// an "RPRT <n>" status line.
//
// The original server multiplexed many listeners and connections through a
// single select() loop with hand-rolled buffering (struct listener, struct
// connection, tx_append/tx_printf). Go's net.Listener/net.Conn plus a
// goroutine per connection replaces that loop directly: each connection
// gets its own goroutine reading lines and writing responses, and the
// kernel/runtime do the multiplexing that select() did by hand.
package rigctld

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// longCmds mirrors the original long_cmds[] alias table: the "\long_name"
// spelling rigctl(1) accepts interactively, resolved to the short letter
// commands handle_command actually switches on.
var longCmds = map[string]string{
	"\\set_freq":       "F",
	"\\get_freq":       "f",
	"\\set_split_freq": "I",
	"\\get_split_freq": "i",
	"\\set_mode":       "M",
	"\\get_mode":       "m",
	"\\set_split_mode":  "X",
	"\\get_split_mode":  "x",
	"\\set_vfo":        "V",
	"\\get_vfo":        "v",
	"\\set_split_vfo":  "S",
	"\\get_split_vfo":  "s",
	"\\set_ptt":        "T",
	"\\get_ptt":        "t",
	"\\set_rit":        "J",
	"\\get_rit":        "j",
	"\\set_xit":        "Z",
	"\\get_xit":        "z",
	"\\get_level":      "l",
	"\\dump_state":     "\x8f",
	"\\chk_vfo":        "\xf0",
	"\\get_dcd":        "\x8b",
}

// Server owns one or more listeners, each proxying commands to the same
// underlying Rig. A real deployment usually runs one Server per physical
// rig, matching one [rig] section of the original dotfile format.
type Server struct {
	Rig    rig.Rig
	Limits rig.Limits
	Logger *log.Logger

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
}

// New returns a Server bound to the given Rig and band limits. The Rig is
// wrapped in a rig.LimitedRig so every set_frequency/set_split_frequency
// call a connection makes is checked against limits, the same guard every
// other caller of the Rig interface gets. A nil Logger discards log
// output.
func New(r rig.Rig, limits rig.Limits, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(nil)
		logger.SetOutput(discardWriter{})
	}
	return &Server{Rig: rig.NewLimitedRig(r, limits), Limits: limits, Logger: logger}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Listen opens a TCP listener at addr and begins serving connections on it
// in background goroutines. It returns once the listener is bound; Close
// stops all listeners.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return rigerr.New(rigerr.NoDevice, "listen %s: %v", addr, err)
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

// Close stops accepting new connections and waits for all accept/serve
// goroutines to return. It does not close connections already accepted,
// so it returns only after their clients have disconnected.
func (s *Server) Close() error {
	s.mu.Lock()
	lns := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	var firstErr error
	for _, ln := range lns {
		if err := ln.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.wg.Wait()
	return firstErr
}

// session is the per-connection virtual-VFO state the original tracked in
// struct connection: a rig with no true multi-VFO memory (or one the
// operator hasn't been given a VFO-select command for) still needs each
// client's notion of "VFO A" and "VFO B" to behave independently, so the
// server fakes it with its own cache and replays SetFrequency/SetMode calls
// on VFO switch.
type session struct {
	srv  *Server
	conn net.Conn

	mu         sync.Mutex
	currentVFO rig.VFO
	splitOn    bool
	freq       map[rig.VFO]uint64
	mode       map[rig.VFO]rig.Mode
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	sess := &session{
		srv:        s,
		conn:       conn,
		currentVFO: rig.VFOA,
		freq:       map[rig.VFO]uint64{},
		mode:       map[rig.VFO]rig.Mode{},
	}

	// Seed the virtual VFOs from whatever the rig currently reports, so a
	// client that immediately issues "f" without ever calling set_vfo gets
	// a sensible answer instead of zero.
	if snap, err := s.Rig.Snapshot(); err == nil {
		sess.freq[rig.VFOA] = snap.Frequency
		sess.mode[rig.VFOA] = snap.Mode
		sess.splitOn = snap.Split
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		resp := sess.dispatch(line)
		if _, err := conn.Write([]byte(resp)); err != nil {
			s.Logger.Debug("write failed, closing connection", "err", err)
			return
		}
	}
}

// dispatch parses one command line ("F 14070000", "\get_freq", "q") and
// returns the full response to write back, terminated with its own
// newlines.
func (sess *session) dispatch(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	cmd := fields[0]
	args := fields[1:]

	if short, ok := longCmds[cmd]; ok {
		cmd = short
	}
	if cmd == "q" || cmd == "Q" || cmd == "\\quit" {
		sess.conn.Close()
		return ""
	}

	switch cmd {
	case "F":
		return sess.setFreq(sess.currentVFO, args)
	case "f":
		return sess.getFreq(sess.currentVFO)
	case "I":
		return sess.setFreq(pairedVFO(sess.currentVFO), args)
	case "i":
		return sess.getFreq(pairedVFO(sess.currentVFO))
	case "M":
		return sess.setMode(sess.currentVFO, args)
	case "m":
		return sess.getMode(sess.currentVFO)
	case "X":
		return sess.setMode(pairedVFO(sess.currentVFO), args)
	case "x":
		return sess.getMode(pairedVFO(sess.currentVFO))
	case "V":
		return sess.setVFO(args)
	case "v":
		return rprtOK(sess.currentVFO.String())
	case "S":
		return sess.setSplit(args)
	case "s":
		return sess.getSplit()
	case "T":
		return sess.setPTT(args)
	case "t":
		return sess.getPTT()
	case "J":
		return sess.setRIT(args)
	case "j":
		return sess.getRIT()
	case "Z":
		return sess.setXIT(args)
	case "z":
		return sess.getXIT()
	case "l":
		return sess.getLevel(args)
	case "\xf0": // CHKVFO
		return "CHKVFO 0\n"
	case "\x8b": // get_dcd
		open, err := sess.srv.Rig.GetSquelch()
		if err != nil {
			return fail(err)
		}
		if open {
			return "1\n"
		}
		return "0\n"
	case "\x8f": // dump_state
		return sess.dumpState()
	default:
		// Unparseable command lines always answer RPRT -1.
		return "RPRT -1\n"
	}
}

// pairedVFO names the "other half" of a VFO pair the way I/i/X/x address it:
// B pairs with A, Sub pairs with Main. A VFO with no natural partner (the
// memory channel, or an unset current VFO) has none.
func pairedVFO(v rig.VFO) rig.VFO {
	switch v {
	case rig.VFOA:
		return rig.VFOB
	case rig.VFOB:
		return rig.VFOA
	case rig.VFOMain:
		return rig.VFOSub
	case rig.VFOSub:
		return rig.VFOMain
	default:
		return rig.VFOUnknown
	}
}

func fail(err error) string {
	var e *rigerr.Error
	if ok := asRigerr(err, &e); ok {
		return fmt.Sprintf("RPRT -%d\n", e.Kind.Errno())
	}
	return "RPRT -1\n"
}

func asRigerr(err error, target **rigerr.Error) bool {
	if e, ok := err.(*rigerr.Error); ok {
		*target = e
		return true
	}
	return false
}

func rprtOK(lines ...string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// setFreq applies a frequency to vfo and the split/duplex dispatch the
// original do_frequency_set performed: setting the paired ("I") VFO while
// split is active reaches the rig through SetSplitFrequency rather than a
// plain SetFrequency, so the rig's TX register tracks independently of
// RX. The band-limit guard itself lives one layer down, in the rig.Rig
// the server was constructed with (see rig.LimitedRig), the same place
// every other caller of SetFrequency/SetSplitFrequency is checked too.
func (sess *session) setFreq(vfo rig.VFO, args []string) string {
	if len(args) != 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "F requires one argument"))
	}
	freq, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fail(rigerr.New(rigerr.InvalidArgument, "bad frequency %q", args[0]))
	}

	sess.mu.Lock()
	splitOn := sess.splitOn
	rxFreq := sess.freq[sess.currentVFO]
	sess.mu.Unlock()

	if splitOn && vfo == pairedVFO(sess.currentVFO) {
		if err := sess.srv.Rig.SetSplitFrequency(rxFreq, freq); err != nil {
			return fail(err)
		}
	} else if err := sess.srv.Rig.SetFrequency(vfo, freq); err != nil {
		return fail(err)
	}

	sess.mu.Lock()
	sess.freq[vfo] = freq
	sess.mu.Unlock()
	return rprtOK("RPRT 0")
}

func (sess *session) getFreq(vfo rig.VFO) string {
	sess.mu.Lock()
	cached, ok := sess.freq[vfo]
	sess.mu.Unlock()
	if ok {
		return rprtOK(strconv.FormatUint(cached, 10))
	}
	freq, err := sess.srv.Rig.GetFrequency(vfo)
	if err != nil {
		return fail(err)
	}
	return rprtOK(strconv.FormatUint(freq, 10))
}

func (sess *session) setMode(vfo rig.VFO, args []string) string {
	if len(args) < 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "M requires a mode argument"))
	}
	mode, ok := parseModeName(args[0])
	if !ok {
		return fail(rigerr.New(rigerr.InvalidArgument, "unknown mode %q", args[0]))
	}
	if err := sess.srv.Rig.SetMode(mode); err != nil {
		return fail(err)
	}
	sess.mu.Lock()
	sess.mode[vfo] = mode
	sess.mu.Unlock()
	return rprtOK("RPRT 0")
}

func (sess *session) getMode(vfo rig.VFO) string {
	sess.mu.Lock()
	cached, ok := sess.mode[vfo]
	sess.mu.Unlock()
	if ok {
		return rprtOK(modeName(cached), "0")
	}
	mode, err := sess.srv.Rig.GetMode()
	if err != nil {
		return fail(err)
	}
	return rprtOK(modeName(mode), "0")
}

// setVFO switches the connection's notion of "current VFO". A rig whose
// dialect has no real VFO-select command (rig.SetVFO returning NotSupported)
// is faked exactly as the original did: the server itself remembers each
// VFO's last frequency/mode and replays them through SetFrequency/SetMode.
func (sess *session) setVFO(args []string) string {
	if len(args) != 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "V requires one argument"))
	}
	vfo, ok := parseVFOName(args[0])
	if !ok {
		return fail(rigerr.New(rigerr.InvalidArgument, "unknown VFO %q", args[0]))
	}

	err := sess.srv.Rig.SetVFO(vfo)
	if err != nil {
		if !isNotSupported(err) {
			return fail(err)
		}
		// Fake it: restore this VFO's cached frequency/mode onto the rig.
		sess.mu.Lock()
		freq, hasFreq := sess.freq[vfo]
		mode, hasMode := sess.mode[vfo]
		sess.mu.Unlock()
		if hasFreq {
			if err := sess.srv.Rig.SetFrequency(rig.VFOUnknown, freq); err != nil {
				return fail(err)
			}
		}
		if hasMode {
			if err := sess.srv.Rig.SetMode(mode); err != nil {
				return fail(err)
			}
		}
	}

	sess.mu.Lock()
	sess.currentVFO = vfo
	sess.mu.Unlock()
	return rprtOK("RPRT 0")
}

func isNotSupported(err error) bool {
	var e *rigerr.Error
	return asRigerr(err, &e) && e.Kind == rigerr.NotSupported
}

// setSplit turns split on or off. Enabling split snapshots the current
// VFO's frequency as the RX leg so a subsequent "I" command only has to
// supply the TX leg, matching the original's capture-on-enable behavior.
func (sess *session) setSplit(args []string) string {
	if len(args) != 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "S requires one argument"))
	}
	on := args[0] == "1" || strings.EqualFold(args[0], "on")

	sess.mu.Lock()
	sess.splitOn = on
	if on {
		sess.freq[pairedVFO(sess.currentVFO)] = sess.freq[sess.currentVFO]
	}
	sess.mu.Unlock()
	return rprtOK("RPRT 0")
}

func (sess *session) getSplit() string {
	sess.mu.Lock()
	on := sess.splitOn
	vfo := pairedVFO(sess.currentVFO)
	sess.mu.Unlock()
	onStr := "0"
	if on {
		onStr = "1"
	}
	return rprtOK(onStr, vfo.String())
}

func (sess *session) setPTT(args []string) string {
	if len(args) != 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "T requires one argument"))
	}
	tx := args[0] == "1"
	if err := sess.srv.Rig.SetPTT(tx); err != nil {
		return fail(err)
	}
	return rprtOK("RPRT 0")
}

func (sess *session) getPTT() string {
	tx, err := sess.srv.Rig.GetPTT()
	if err != nil {
		return fail(err)
	}
	if tx {
		return rprtOK("1")
	}
	return rprtOK("0")
}

func (sess *session) setRIT(args []string) string {
	if len(args) != 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "J requires one argument"))
	}
	offset, err := strconv.Atoi(args[0])
	if err != nil {
		return fail(rigerr.New(rigerr.InvalidArgument, "bad RIT offset %q", args[0]))
	}
	if err := sess.srv.Rig.SetRIT(offset, offset != 0); err != nil {
		return fail(err)
	}
	return rprtOK("RPRT 0")
}

func (sess *session) getRIT() string {
	offset, on, err := sess.srv.Rig.GetRIT()
	if err != nil {
		return fail(err)
	}
	if !on {
		return rprtOK("0")
	}
	return rprtOK(strconv.Itoa(offset))
}

func (sess *session) setXIT(args []string) string {
	if len(args) != 1 {
		return fail(rigerr.New(rigerr.InvalidArgument, "Z requires one argument"))
	}
	offset, err := strconv.Atoi(args[0])
	if err != nil {
		return fail(rigerr.New(rigerr.InvalidArgument, "bad XIT offset %q", args[0]))
	}
	if err := sess.srv.Rig.SetXIT(offset, offset != 0); err != nil {
		return fail(err)
	}
	return rprtOK("RPRT 0")
}

func (sess *session) getXIT() string {
	offset, on, err := sess.srv.Rig.GetXIT()
	if err != nil {
		return fail(err)
	}
	if !on {
		return rprtOK("0")
	}
	return rprtOK(strconv.Itoa(offset))
}

// getLevel implements the one sub-command rigctld clients actually poll at
// interactive speed: "l STRENGTH", the S-meter reading, reported relative
// to S9 the way the original did (raw reading minus 49).
func (sess *session) getLevel(args []string) string {
	if len(args) != 1 || args[0] != "STRENGTH" {
		return fail(rigerr.New(rigerr.InvalidArgument, "unsupported level %v", args))
	}
	level, err := sess.srv.Rig.GetSMeter()
	if err != nil {
		return fail(err)
	}
	return rprtOK(strconv.Itoa(level - 49))
}

// dumpState answers \dump_state the way the dummy-backend reference output
// did: the three protocol/model/region lines, one RX range line per
// configured band (terminated by an all-zero line), one TX range line per
// configured TX band (likewise terminated),
// then a run of fixed zero placeholders for capabilities this server
// doesn't model (tuning steps, filters, RIT/XIT/IF-shift maxima, announces,
// preamp/attenuator lists, get/set function and parameter bitmasks) plus a
// get-level bitmask bit set only because GetSMeter is implemented.
func (sess *session) dumpState() string {
	var b strings.Builder
	b.WriteString("0\n2\n2\n")

	vfoBits := 0x10000003 // VFO_MEM | VFO_A | VFO_B
	for _, l := range sess.srv.Limits.RX {
		fmt.Fprintf(&b, "%d %d 0x1ff -1 -1 0x%x 0x01\n", l.Low, l.High, vfoBits)
	}
	b.WriteString("0 0 0 0 0 0 0\n")
	for _, l := range sess.srv.Limits.TX {
		fmt.Fprintf(&b, "%d %d 0x1ff 0 100 0x%x 0x01\n", l.Low, l.High, vfoBits)
	}
	b.WriteString("0 0 0 0 0 0 0\n")
	b.WriteString("0 0\n0 0\n0\n0\n0\n0\n\n\n0x0\n0x0\n")
	fmt.Fprintf(&b, "0x%x\n", 0x40000000) // get_level: STRENGTH is always implemented
	b.WriteString("0x0\n0x0\n0x0\n")
	return b.String()
}

// parseModeName and modeName translate between the wire names rigctl(1)
// clients use ("USB", "CW", ...) and the dialect-independent rig.Mode.
func parseModeName(name string) (rig.Mode, bool) {
	switch strings.ToUpper(name) {
	case "LSB":
		return rig.ModeLSB, true
	case "USB":
		return rig.ModeUSB, true
	case "CW":
		return rig.ModeCW, true
	case "CWR":
		return rig.ModeCWR, true
	case "AM":
		return rig.ModeAM, true
	case "FM":
		return rig.ModeFM, true
	case "RTTY":
		return rig.ModeFSK, true
	case "RTTYR":
		return rig.ModeFSKR, true
	default:
		return rig.ModeUnknown, false
	}
}

func modeName(m rig.Mode) string {
	switch m {
	case rig.ModeFSK:
		return "RTTY"
	case rig.ModeFSKR:
		return "RTTYR"
	default:
		return m.String()
	}
}

func parseVFOName(name string) (rig.VFO, bool) {
	switch strings.ToUpper(name) {
	case "VFOA", "A":
		return rig.VFOA, true
	case "VFOB", "B":
		return rig.VFOB, true
	case "MEM":
		return rig.VFOMemory, true
	case "MAIN":
		return rig.VFOMain, true
	case "SUB":
		return rig.VFOSub, true
	default:
		return rig.VFOUnknown, false
	}
}
