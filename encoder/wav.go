package encoder

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

type WavEncoder struct {
	enc         *wav.Encoder
	format      *audio.Format
	totalFrames uint64
}

func NewWav(w io.WriteSeeker) *WavEncoder {
	return &WavEncoder{
		enc:    wav.NewEncoder(w, SampleRate, BitsPerSample, Channels, wavFormatPCM),
		format: &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
	}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	data := make([]int, len(block))
	for i, s := range block {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{Format: e.format, Data: data, SourceBitDepth: BitsPerSample}
	if err := e.enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

// Close patches the RIFF header sizes. An empty stream still gets a header.
func (e *WavEncoder) Close() error {
	if e.totalFrames == 0 {
		buf := &audio.IntBuffer{Format: e.format, Data: []int{}, SourceBitDepth: BitsPerSample}
		if err := e.enc.Write(buf); err != nil {
			return fmt.Errorf("writing wav header: %w", err)
		}
	}
	return e.enc.Close()
}

func (e *WavEncoder) TotalFrames() uint64 {
	return e.totalFrames
}
