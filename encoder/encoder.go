package encoder

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

// BytesPerSecond is the size of one second of capture PCM.
const BytesPerSecond = SampleRate * Channels * BitsPerSample / 8

type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wav":
		return FormatWAV, nil
	case "flac":
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("unknown artifact format %q (valid: wav, flac)", s)
}

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	TotalFrames() uint64
}

// Samples reinterprets S16LE bytes as samples. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Duration of n mono samples at SampleRate.
func Duration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}

// WriteFile encodes pcm into a new file at path and returns the sample count.
func WriteFile(path string, format Format, pcm []byte) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating artifact: %w", err)
	}

	var enc Encoder
	switch format {
	case FormatFLAC:
		enc, err = NewFlac(f)
	default:
		enc = NewWav(f)
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return 0, err
	}

	samples := Samples(pcm)
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			f.Close()
			os.Remove(path)
			return 0, err
		}
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return 0, err
	}
	return len(samples), nil
}
