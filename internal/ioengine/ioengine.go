// Package ioengine provides the serial transport and response-correlation
// layer shared by the rig-control dialect engines. Responses arriving on
// the wire are either the answer a caller is synchronously waiting for, or
// an unsolicited (asynchronous) report; exactly one of those two
// destinations gets each frame.
//
// The source mailbox pattern used a dual semaphore (response_semaphore,
// ack_semaphore) guarding a single-slot mailbox shared between the reader
// goroutine and waiting callers. That is equivalent to, and cleaner as, a
// per-call reply channel: the reader goroutine holds at most one pending
// request description (a byte prefix plus a channel), and delivers each
// frame to that channel on a match or to the async handler otherwise. This
// package implements the channel form.
package ioengine

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// Response is one framed message read from the transport.
type Response struct {
	Data []byte
}

// AsyncHandler receives frames that do not match any pending synchronous
// request: unsolicited status lines, spontaneous IF updates, and the like.
type AsyncHandler func(Response)

// Framer reads exactly one frame from r, blocking until a frame is
// complete, the deadline set by SetReadDeadline elapses, or an I/O error
// occurs. Implementations should return a sentinel satisfying
// errors.Is(err, rigerr.ErrTimeout) on a read timeout so the reader loop can
// distinguish "nothing arrived yet" from a dead link.
type Framer func(r io.Reader) ([]byte, error)

// Port is the transport a Handle drives: a byte stream plus a deadline,
// satisfied by *os.File-backed serial devices (including ptys used in
// tests) and by github.com/pkg/term.Term when wrapped to expose a
// deadline.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(t time.Time) error
}

type pending struct {
	prefix []byte
	pos    int
	reply  chan Response
}

// Handle correlates requests with responses on a single serial link.
type Handle struct {
	port   Port
	framer Framer
	async  AsyncHandler

	syncMu sync.Mutex // serializes full request/response exchanges

	mu      sync.Mutex
	pending *pending
	closed  bool

	stop chan struct{}
	done chan struct{}

	ReadDeadline time.Duration // per-frame poll interval while idle
}

// Open starts the reader goroutine for port. Frames are produced by framer;
// any frame not claimed by a pending Send is passed to async.
func Open(port Port, framer Framer, async AsyncHandler) *Handle {
	h := &Handle{
		port:         port,
		framer:       framer,
		async:        async,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		ReadDeadline: 200 * time.Millisecond,
	}
	go h.readLoop()
	return h
}

func (h *Handle) readLoop() {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			return
		default:
		}
		h.port.SetReadDeadline(time.Now().Add(h.ReadDeadline))
		frame, err := h.framer(h.port)
		if err != nil {
			if rigerr.IsTimeout(err) {
				continue
			}
			// Device gone; nothing more to read. Let callers time out.
			return
		}
		h.mu.Lock()
		p := h.pending
		match := p != nil && len(frame) >= p.pos+len(p.prefix) && bytes.Equal(frame[p.pos:p.pos+len(p.prefix)], p.prefix)
		if match {
			h.pending = nil
		}
		h.mu.Unlock()

		if match {
			p.reply <- Response{Data: frame}
		} else if h.async != nil {
			h.async(Response{Data: frame})
		}
	}
}

// Send writes request, then waits up to timeout for a frame whose bytes at
// offset matchPos equal match. Only one Send may be outstanding per Handle
// at a time; callers needing strict command ordering rely on that.
func (h *Handle) Send(request []byte, match []byte, matchPos int, timeout time.Duration) (Response, error) {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()

	reply := make(chan Response, 1)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return Response{}, rigerr.New(rigerr.NoDevice, "ioengine: handle closed")
	}
	h.pending = &pending{prefix: match, pos: matchPos, reply: reply}
	h.mu.Unlock()

	if _, err := h.port.Write(request); err != nil {
		h.mu.Lock()
		h.pending = nil
		h.mu.Unlock()
		return Response{}, rigerr.New(rigerr.NoDevice, "ioengine: write: %v", err)
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-time.After(timeout):
		h.mu.Lock()
		h.pending = nil
		h.mu.Unlock()
		return Response{}, rigerr.New(rigerr.Timeout, "ioengine: no response matching %q within %s", match, timeout)
	}
}

// Write sends a fire-and-forget frame with no response correlation, used
// for commands a dialect does not expect to be acknowledged.
func (h *Handle) Write(request []byte) error {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()
	if _, err := h.port.Write(request); err != nil {
		return rigerr.New(rigerr.NoDevice, "ioengine: write: %v", err)
	}
	return nil
}

// Close stops the reader goroutine and closes the underlying port.
func (h *Handle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	close(h.stop)
	<-h.done
	return h.port.Close()
}

// SemicolonFramer reads bytes until a ';' terminator, per Kenwood-HF
// command framing. maxLen bounds a run of unterminated garbage.
func SemicolonFramer(maxLen int) Framer {
	return func(r io.Reader) ([]byte, error) {
		buf := make([]byte, 0, 32)
		var b [1]byte
		for len(buf) < maxLen {
			n, err := r.Read(b[:])
			if n == 0 {
				if err != nil {
					return nil, classifyReadErr(err)
				}
				continue
			}
			buf = append(buf, b[0])
			if b[0] == ';' {
				return buf, nil
			}
		}
		return nil, rigerr.New(rigerr.ProtocolError, "ioengine: frame exceeded %d bytes unterminated", maxLen)
	}
}

// FixedLengthFramer reads exactly n bytes, per Yaesu binary-CAT framing.
func FixedLengthFramer(n int) Framer {
	return func(r io.Reader) ([]byte, error) {
		buf := make([]byte, n)
		read := 0
		for read < n {
			k, err := r.Read(buf[read:])
			read += k
			if read == n {
				return buf, nil
			}
			if err != nil {
				return nil, classifyReadErr(err)
			}
		}
		return buf, nil
	}
}

func classifyReadErr(err error) error {
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return rigerr.ErrTimeout
	}
	return fmt.Errorf("ioengine: read: %w", err)
}
