// Package audio wraps the portaudio sound-device interface the demodulator
// reads from and the modulator writes to: signed 16-bit samples at a
// configurable rate, one input or output stream per device.
package audio

import (
	"github.com/gordonklaus/portaudio"

	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// Init initializes the portaudio library. Call once at process startup;
// pair with Terminate on shutdown.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return rigerr.New(rigerr.NoDevice, "portaudio init: %v", err)
	}
	return nil
}

// Terminate releases portaudio's host API resources.
func Terminate() error {
	return portaudio.Terminate()
}

// CaptureStream reads signed 16-bit samples from the default input device.
type CaptureStream struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenCapture opens the default input device at sampleRate with the given
// buffer size in frames.
func OpenCapture(sampleRate float64, framesPerBuffer int) (*CaptureStream, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, framesPerBuffer, buf)
	if err != nil {
		return nil, rigerr.New(rigerr.NoDevice, "opening capture stream: %v", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, rigerr.New(rigerr.NoDevice, "starting capture stream: %v", err)
	}
	return &CaptureStream{stream: stream, buf: buf}, nil
}

// Read blocks until one buffer's worth of samples is available and returns
// it. The returned slice is reused on the next call.
func (c *CaptureStream) Read() ([]int16, error) {
	if err := c.stream.Read(); err != nil {
		return nil, rigerr.New(rigerr.NoDevice, "capture read: %v", err)
	}
	return c.buf, nil
}

// Close stops and releases the stream.
func (c *CaptureStream) Close() error {
	c.stream.Stop()
	return c.stream.Close()
}

// PlaybackStream writes signed 16-bit samples to the default output device.
type PlaybackStream struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenPlayback opens the default output device at sampleRate with the
// given buffer size in frames.
func OpenPlayback(sampleRate float64, framesPerBuffer int) (*PlaybackStream, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, framesPerBuffer, buf)
	if err != nil {
		return nil, rigerr.New(rigerr.NoDevice, "opening playback stream: %v", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, rigerr.New(rigerr.NoDevice, "starting playback stream: %v", err)
	}
	return &PlaybackStream{stream: stream, buf: buf}, nil
}

// Write copies samples into the output buffer in framesPerBuffer-sized
// chunks and blocks until each chunk is written.
func (p *PlaybackStream) Write(samples []int16) error {
	for len(samples) > 0 {
		n := copy(p.buf, samples)
		for i := n; i < len(p.buf); i++ {
			p.buf[i] = 0
		}
		if err := p.stream.Write(); err != nil {
			return rigerr.New(rigerr.NoDevice, "playback write: %v", err)
		}
		samples = samples[n:]
	}
	return nil
}

// Close stops and releases the stream.
func (p *PlaybackStream) Close() error {
	p.stream.Stop()
	return p.stream.Close()
}
