package audio

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/pkg/errors"
)

const (
	// InputSampleRate is the rate captured microphone audio is sent at.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio returned by the model.
	OutputSampleRate = 24000
	// InputMimeType tags every captured frame sent to the live session.
	InputMimeType = "audio/pcm;rate=16000"
	// DefaultFrameSize is the number of samples per captured frame.
	DefaultFrameSize = 4096
)

// Buffer is decoded mono or interleaved float32 audio.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration is the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}

// FloatToPCM16 encodes samples in [-1, 1] as 16-bit little-endian PCM.
// Out of range samples are clamped instead of wrapping.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	v := float64(s) * 32768
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// PCM16ToFloat decodes 16-bit little-endian PCM into float32 samples.
// A trailing odd byte is ignored.
func PCM16ToFloat(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768
	}
	return out
}

// DecodePCM16 wraps raw PCM16 bytes into a Buffer.
func DecodePCM16(data []byte, sampleRate, channels int) *Buffer {
	return &Buffer{
		Samples:    PCM16ToFloat(data),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// ReadFrame reads up to n float32 little-endian samples from r. A short final
// frame is returned together with a nil error; io.EOF is only returned when no
// sample could be read.
func ReadFrame(r io.Reader, n int) ([]float32, error) {
	buf := make([]byte, n*4)
	read, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "could not read audio frame")
	}
	count := read / 4
	if count == 0 {
		return nil, io.EOF
	}
	samples := make([]float32, count)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return samples, nil
}

// WriteFloat32 writes samples as float32 little-endian, the format ReadFrame reads.
func WriteFloat32(w io.Writer, samples []float32) error {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	_, err := w.Write(buf)
	return errors.Wrap(err, "could not write samples")
}
