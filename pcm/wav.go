package pcm

import (
	"fmt"
	"io"

	"github.com/cwbudde/wav"
)

// WriteWAV encodes the buffer as a 16-bit PCM WAV file.
func (b *Buffer) WriteWAV(w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, b.sampleRate, BitsPerSample, len(b.channels), 1) // 1 = PCM
	if err := enc.Write(b.AsFloat32Buffer()); err != nil {
		return fmt.Errorf("writing PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	return nil
}
