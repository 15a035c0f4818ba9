package ioengine

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipePort adapts a net.Conn (from net.Pipe) to the Port interface; TCP
// loopback sockets support real read deadlines the same way.
type pipePort struct {
	net.Conn
}

func newPipePair() (*pipePort, *pipePort) {
	a, b := net.Pipe()
	return &pipePort{a}, &pipePort{b}
}

func TestSendMatchesPendingRequest(t *testing.T) {
	client, remote := newPipePair()
	defer remote.Close()

	go func() {
		buf := make([]byte, 32)
		n, _ := remote.Read(buf)
		_ = n
		remote.Write([]byte("IF00014250000;"))
	}()

	h := Open(client, SemicolonFramer(64), func(Response) {})
	defer h.Close()

	resp, err := h.Send([]byte("IF;"), []byte("IF"), 0, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "IF00014250000;", string(resp.Data))
}

func TestUnmatchedFrameGoesToAsync(t *testing.T) {
	client, remote := newPipePair()
	defer remote.Close()

	asyncCh := make(chan Response, 1)
	h := Open(client, SemicolonFramer(64), func(r Response) { asyncCh <- r })
	defer h.Close()

	remote.Write([]byte("IF00014250000;"))

	select {
	case r := <-asyncCh:
		require.Equal(t, "IF00014250000;", string(r.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}
}

func TestSendTimesOutWithoutResponse(t *testing.T) {
	client, remote := newPipePair()
	defer remote.Close()
	go func() {
		buf := make([]byte, 32)
		remote.Read(buf)
	}()

	h := Open(client, SemicolonFramer(64), func(Response) {})
	defer h.Close()

	_, err := h.Send([]byte("IF;"), []byte("IF"), 0, 100*time.Millisecond)
	require.Error(t, err)
}

func TestFixedLengthFramerReadsExactBytes(t *testing.T) {
	client, remote := newPipePair()
	defer remote.Close()

	go func() {
		buf := make([]byte, 32)
		remote.Read(buf)
		remote.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x00})
	}()

	h := Open(client, FixedLengthFramer(5), func(Response) {})
	defer h.Close()

	resp, err := h.Send([]byte{0x01}, []byte{0x00}, 4, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, resp.Data, 5)
}
