package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/hraban/opus"

	internalaudio "github.com/RijinRaju/healthcare-translation-backend/internal/audio"
)

const (
	channels = 1
	// 120ms is the largest frame duration Opus allows, so a decode buffer
	// sized for it fits any packet.
	maxFrameMs = 120
)

// OpusDecoder decodes one client's Opus frames into LINEAR16 PCM.
type OpusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	pcm        []int16
	closed     bool
}

func NewOpusDecoder(sampleRate int) (internalaudio.Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &OpusDecoder{
		dec:        dec,
		sampleRate: sampleRate,
		pcm:        make([]int16, sampleRate*maxFrameMs*channels/1000),
	}, nil
}

func (d *OpusDecoder) Decode(frame []byte) ([]byte, error) {
	if d.closed {
		return nil, fmt.Errorf("opus decoder is closed")
	}
	if len(frame) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(frame, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("decode opus frame: %w", err)
	}
	out := make([]byte, n*channels*2)
	for i := 0; i < n*channels; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(d.pcm[i]))
	}
	return out, nil
}

func (d *OpusDecoder) Close() {
	d.closed = true
}

// PassthroughDecoder hands LINEAR16 frames through untouched.
type PassthroughDecoder struct{}

func (PassthroughDecoder) Decode(frame []byte) ([]byte, error) { return frame, nil }
func (PassthroughDecoder) Close()                              {}
