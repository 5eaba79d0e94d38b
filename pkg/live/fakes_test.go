package live

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-go-golems/shift/pkg/audio"
	"github.com/pkg/errors"
)

type sentFrame struct {
	data     []byte
	mimeType string
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentFrame
	incoming chan *ServerMessage
	closed   chan struct{}
	once     sync.Once
	closes   int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan *ServerMessage, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, data []byte, mimeType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return errors.New("transport closed")
	default:
	}
	f.sent = append(f.sent, sentFrame{data: data, mimeType: mimeType})
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) (*ServerMessage, error) {
	select {
	case <-f.closed:
		return nil, errors.New("use of closed connection")
	case msg, ok := <-f.incoming:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) sentFrames() []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentFrame(nil), f.sent...)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeConnector struct {
	mu        sync.Mutex
	transport *fakeTransport
	err       error
	block     bool
	configs   []ConnectConfig
}

func (c *fakeConnector) Connect(ctx context.Context, cfg ConnectConfig) (Transport, error) {
	c.mu.Lock()
	c.configs = append(c.configs, cfg)
	block, err, t := c.block, c.err, c.transport
	c.mu.Unlock()
	if block {
		<-ctx.Done()
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// chanCapture yields frames pushed on a channel and io.EOF once it is closed.
type chanCapture struct {
	frames chan []float32
	closed chan struct{}
	once   sync.Once
}

func newChanCapture() *chanCapture {
	return &chanCapture{frames: make(chan []float32, 16), closed: make(chan struct{})}
}

func (c *chanCapture) ReadFrame(ctx context.Context) ([]float32, error) {
	select {
	case <-c.closed:
		return nil, io.EOF
	case f, ok := <-c.frames:
		if !ok {
			return nil, io.EOF
		}
		return f, nil
	}
}

func (c *chanCapture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *chanCapture) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeOutput has a manually advanced playback clock.
type fakeOutput struct {
	mu        sync.Mutex
	now       time.Duration
	scheduled []*fakeSource
	closed    bool
}

type fakeSource struct {
	at      time.Duration
	dur     time.Duration
	stopped bool
}

func (s *fakeSource) Stop() {
	s.stopped = true
}

func (o *fakeOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now += d
}

func (o *fakeOutput) Schedule(buf *audio.Buffer, at time.Duration) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrOutputClosed
	}
	src := &fakeSource{at: at, dur: buf.Duration()}
	o.scheduled = append(o.scheduled, src)
	return src, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *fakeOutput) sources() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.scheduled...)
}

// pcmOfDuration returns a zeroed 24 kHz mono PCM16 chunk of the given length.
func pcmOfDuration(d time.Duration) []byte {
	samples := int(d * audio.OutputSampleRate / time.Second)
	return make([]byte, samples*2)
}
