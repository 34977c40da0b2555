// Package pcm decodes the raw audio returned by the speech service.
//
// The wire format is fixed: headerless signed 16-bit little-endian PCM,
// base64 encoded, mono at 24 kHz. No resampling or container parsing is done.
package pcm

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
)

// Wire format of the speech service.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
	Format        = "s16le"

	bytesPerSample = BitsPerSample / 8
)

var (
	// ErrOddLength is returned when the payload does not hold whole 16-bit samples.
	ErrOddLength = errors.New("odd byte length")
	// ErrPartialFrame is returned when the sample count is not a multiple of the channel count.
	ErrPartialFrame = errors.New("sample count is not a multiple of the channel count")
	// ErrInvalidFormat is returned for a non-positive sample rate or channel count.
	ErrInvalidFormat = errors.New("invalid sample rate or channel count")
)

// DecodeError reports a payload that could not be turned into a Buffer.
type DecodeError struct {
	Len int // decoded byte length, -1 if base64 decoding failed
	Err error
}

func (e *DecodeError) Error() string {
	if e.Len < 0 {
		return fmt.Sprintf("failed to decode audio data: %v", e.Err)
	}
	return fmt.Sprintf("failed to decode audio data (%d bytes): %v", e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Buffer is decoded audio: one float32 slice per channel, samples in [-1, 1).
// A Buffer is never modified after Decode returns it.
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// Decode base64-decodes b64 and interprets the bytes as interleaved s16le PCM.
func Decode(b64 string, sampleRate, channels int) (*Buffer, error) {
	// Line-wrapped payloads show up when the data passes through JSON tooling.
	if strings.ContainsAny(b64, "\r\n\t ") {
		b64 = strings.Join(strings.Fields(b64), "")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, &DecodeError{Len: -1, Err: err}
	}
	return DecodeBytes(raw, sampleRate, channels)
}

// DecodeBytes converts interleaved s16le bytes into a Buffer.
// An empty payload yields an empty Buffer and no error.
func DecodeBytes(raw []byte, sampleRate, channels int) (*Buffer, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, &DecodeError{Len: len(raw), Err: ErrInvalidFormat}
	}
	if len(raw)%bytesPerSample != 0 {
		return nil, &DecodeError{Len: len(raw), Err: ErrOddLength}
	}
	samples := len(raw) / bytesPerSample
	if samples%channels != 0 {
		return nil, &DecodeError{Len: len(raw), Err: ErrPartialFrame}
	}
	if bytes.HasPrefix(raw, []byte("RIFF")) {
		log.Printf("[pcm] payload starts with a RIFF header; decoding as raw PCM anyway")
	}

	frames := samples / channels
	buf := &Buffer{
		sampleRate: sampleRate,
		channels:   make([][]float32, channels),
	}
	for ch := range buf.channels {
		buf.channels[ch] = make([]float32, frames)
	}
	for i := 0; i < samples; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*bytesPerSample:]))
		buf.channels[i%channels][i/channels] = float32(v) / 32768.0
	}
	return buf, nil
}

// SampleRate returns the sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumberOfChannels returns the channel count.
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Length returns the number of frames per channel.
func (b *Buffer) Length() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration returns the playback length of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate == 0 {
		return 0
	}
	return time.Duration(b.Length()) * time.Second / time.Duration(b.sampleRate)
}

// Channel returns a copy of the samples of channel ch.
func (b *Buffer) Channel(ch int) []float32 {
	out := make([]float32, b.Length())
	copy(out, b.channels[ch])
	return out
}

// Mono returns the per-frame average of all channels.
func (b *Buffer) Mono() []float32 {
	if len(b.channels) == 1 {
		return b.Channel(0)
	}
	out := make([]float32, b.Length())
	for _, data := range b.channels {
		for i, v := range data {
			out[i] += v
		}
	}
	n := float32(len(b.channels))
	for i := range out {
		out[i] /= n
	}
	return out
}

// AsFloat32Buffer interleaves the channels into a go-audio buffer.
func (b *Buffer) AsFloat32Buffer() *goaudio.Float32Buffer {
	nch := len(b.channels)
	data := make([]float32, b.Length()*nch)
	for ch, samples := range b.channels {
		for i, v := range samples {
			data[i*nch+ch] = v
		}
	}
	return &goaudio.Float32Buffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: b.sampleRate, NumChannels: nch},
		SourceBitDepth: BitsPerSample,
	}
}

// PCM16 re-encodes the buffer as interleaved s16le bytes.
// For buffers produced by Decode the result equals the original payload.
func (b *Buffer) PCM16() []byte {
	nch := len(b.channels)
	out := make([]byte, b.Length()*nch*bytesPerSample)
	for ch, samples := range b.channels {
		for i, v := range samples {
			s := v * 32768.0
			switch {
			case s > 32767:
				s = 32767
			case s < -32768:
				s = -32768
			}
			binary.LittleEndian.PutUint16(out[(i*nch+ch)*bytesPerSample:], uint16(int16(s)))
		}
	}
	return out
}
