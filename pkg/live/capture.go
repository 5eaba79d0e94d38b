package live

import (
	"context"
	"io"

	"github.com/go-go-golems/shift/pkg/audio"
)

// CaptureSource yields captured microphone frames as float32 samples.
// ReadFrame returns io.EOF when the source is exhausted.
type CaptureSource interface {
	ReadFrame(ctx context.Context) ([]float32, error)
	Close() error
}

// ReaderCapture reads raw float32 little-endian mono samples from a stream,
// e.g. the output of `ffmpeg -f f32le -ar 16000 -ac 1 -`.
type ReaderCapture struct {
	r         io.Reader
	frameSize int
}

func NewReaderCapture(r io.Reader, frameSize int) *ReaderCapture {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}
	return &ReaderCapture{r: r, frameSize: frameSize}
}

func (c *ReaderCapture) ReadFrame(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return audio.ReadFrame(c.r, c.frameSize)
}

// Close closes the underlying stream when it is closable, which unblocks a
// pending ReadFrame.
func (c *ReaderCapture) Close() error {
	if closer, ok := c.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
