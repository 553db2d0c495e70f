// Package audio decodes narrated speech and plays it through a single
// exclusive playback slot.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// Narration audio is mono signed 16-bit little-endian PCM at 24 kHz.
const (
	SampleRate = 24000
	Channels   = 1
)

// Buffer is decoded, playable audio.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	return len(b.Samples) / b.Channels
}

// Duration returns how long the buffer plays for.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Decode decodes a standard base64 payload.
func Decode(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return data, nil
}

// DecodePCM interprets data as little-endian int16 samples and normalises
// each one into [-1, 1) by dividing by 32768. A trailing odd byte is dropped.
func DecodePCM(data []byte) *Buffer {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		samples[i] = float32(v) / 32768.0
	}
	return &Buffer{
		SampleRate: SampleRate,
		Channels:   Channels,
		Samples:    samples,
	}
}

// DecodeBase64PCM decodes a base64 PCM payload straight into a Buffer.
func DecodeBase64PCM(payload string) (*Buffer, error) {
	data, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	return DecodePCM(data), nil
}
