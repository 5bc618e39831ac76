package audio

import "errors"

// ErrBufferOverflow is returned when unflushed audio exceeds the configured
// cap. The buffer discards its oldest data before returning so the session
// can keep going after reporting the loss.
var ErrBufferOverflow = errors.New("audio frame buffer overflow")

// FrameBuffer accumulates inbound audio chunks and cuts them into
// fixed-size segments for the transcription stream. It is owned by a single
// session goroutine and is not safe for concurrent use.
type FrameBuffer struct {
	segmentBytes int
	capBytes     int
	buf          []byte
}

func NewFrameBuffer(segmentBytes, capBytes int) *FrameBuffer {
	return &FrameBuffer{
		segmentBytes: segmentBytes,
		capBytes:     capBytes,
		buf:          make([]byte, 0, segmentBytes*2),
	}
}

// Accept appends chunk and returns every complete segment now available, in
// arrival order. When the unflushed remainder would exceed the cap it drops
// the oldest bytes to fit and returns ErrBufferOverflow alongside the
// segments cut so far.
func (b *FrameBuffer) Accept(chunk []byte) ([][]byte, error) {
	b.buf = append(b.buf, chunk...)

	var segments [][]byte
	for len(b.buf) >= b.segmentBytes {
		seg := make([]byte, b.segmentBytes)
		copy(seg, b.buf[:b.segmentBytes])
		segments = append(segments, seg)
		b.buf = b.buf[:copy(b.buf, b.buf[b.segmentBytes:])]
	}

	if len(b.buf) > b.capBytes {
		dropped := len(b.buf) - b.capBytes
		b.buf = b.buf[:copy(b.buf, b.buf[dropped:])]
		return segments, ErrBufferOverflow
	}
	return segments, nil
}

// Flush returns any buffered remainder as a final short segment. Used when
// the session drains so trailing audio still reaches the transcriber.
func (b *FrameBuffer) Flush() []byte {
	if len(b.buf) == 0 {
		return nil
	}
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	b.buf = b.buf[:0]
	return out
}

// Buffered reports the number of unflushed bytes.
func (b *FrameBuffer) Buffered() int {
	return len(b.buf)
}
