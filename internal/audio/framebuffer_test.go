package audio

import (
	"bytes"
	"errors"
	"testing"
)

func TestAccept_CutsFixedSegments(t *testing.T) {
	fb := NewFrameBuffer(4, 64)

	segs, err := fb.Accept([]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected no segments yet, got %d", len(segs))
	}
	if fb.Buffered() != 3 {
		t.Fatalf("expected 3 buffered bytes, got %d", fb.Buffered())
	}

	segs, err = fb.Accept([]byte{4, 5, 6, 7, 8, 9})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if !bytes.Equal(segs[0], []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected first segment %v", segs[0])
	}
	if !bytes.Equal(segs[1], []byte{5, 6, 7, 8}) {
		t.Fatalf("unexpected second segment %v", segs[1])
	}
	if fb.Buffered() != 1 {
		t.Fatalf("expected 1 buffered byte, got %d", fb.Buffered())
	}
}

func TestAccept_PreservesArrivalOrder(t *testing.T) {
	fb := NewFrameBuffer(2, 64)
	var got []byte
	for _, chunk := range [][]byte{{1}, {2, 3}, {4, 5, 6}} {
		segs, err := fb.Accept(chunk)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, s := range segs {
			got = append(got, s...)
		}
	}
	got = append(got, fb.Flush()...)
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("order not preserved: %v", got)
	}
}

func TestAccept_OverflowDropsOldest(t *testing.T) {
	fb := NewFrameBuffer(10, 4)

	if _, err := fb.Accept([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("expected no error at cap, got %v", err)
	}
	segs, err := fb.Accept([]byte{5, 6})
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if len(segs) != 0 {
		t.Fatalf("expected no segments, got %d", len(segs))
	}
	if fb.Buffered() != 4 {
		t.Fatalf("expected buffer trimmed to cap, got %d", fb.Buffered())
	}
	if !bytes.Equal(fb.Flush(), []byte{3, 4, 5, 6}) {
		t.Fatal("expected oldest bytes dropped")
	}
}

func TestAccept_RecoversAfterOverflow(t *testing.T) {
	fb := NewFrameBuffer(10, 4)
	if _, err := fb.Accept([]byte{1, 2, 3, 4, 5}); !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := fb.Accept(nil); err != nil {
		t.Fatalf("expected recovery after overflow, got %v", err)
	}
}

func TestFlush_ReturnsRemainderOnce(t *testing.T) {
	fb := NewFrameBuffer(8, 64)
	if _, err := fb.Accept([]byte{1, 2, 3}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tail := fb.Flush(); !bytes.Equal(tail, []byte{1, 2, 3}) {
		t.Fatalf("unexpected tail %v", tail)
	}
	if tail := fb.Flush(); tail != nil {
		t.Fatalf("expected nil on second flush, got %v", tail)
	}
}
