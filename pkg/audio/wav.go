package audio

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// WriteWAV writes the buffer as a 16-bit PCM RIFF/WAVE file.
func (b *Buffer) WriteWAV(w io.Writer) error {
	if b == nil || b.SampleRate <= 0 || b.Channels <= 0 {
		return errors.New("invalid audio buffer")
	}
	data := FloatToPCM16(b.Samples)
	blockAlign := b.Channels * 2

	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(data)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(b.Channels),
		SampleRate:    uint32(b.SampleRate),
		ByteRate:      uint32(b.SampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(data)),
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "could not write wav header")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "could not write wav data")
	}
	return nil
}
