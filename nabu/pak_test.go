package nabu

import (
	"bytes"
	"testing"
)

// buildPakFile assembles length-prefixed records into a pak stream.
func buildPakFile(frames ...[]byte) []byte {
	var data []byte
	for _, frame := range frames {
		data = append(data, byte(len(frame)), byte(len(frame)>>8))
		data = append(data, frame...)
	}
	return data
}

func TestParsePak(t *testing.T) {
	s0 := newSegment(1, 0, SegTypeFirst, 0, []byte("HELLO, ")).Frame()
	s1 := newSegment(1, 1, SegTypeLast, 7, []byte("NABU!")).Frame()
	data := buildPakFile(s0, s1)

	pak, err := ParsePak(1, data)
	if err != nil {
		t.Fatalf("ParsePak() error: %v", err)
	}
	if pak.SegmentCount() != 2 {
		t.Fatalf("SegmentCount() = %d, want 2", pak.SegmentCount())
	}

	got, err := pak.Segment(0)
	if err != nil {
		t.Fatalf("Segment(0) error: %v", err)
	}
	if !bytes.Equal(got, s0) {
		t.Errorf("Segment(0) = %x, want %x", got, s0)
	}

	if image := pak.Image(); string(image) != "HELLO, NABU!" {
		t.Errorf("Image() = %q, want %q", image, "HELLO, NABU!")
	}
}

func TestParsePakTrailingFill(t *testing.T) {
	s0 := newSegment(1, 0, SegTypeFirst, 0, []byte("payload")).Frame()
	data := append(buildPakFile(s0), PakFillByte, PakFillByte, PakFillByte)

	pak, err := ParsePak(1, data)
	if err != nil {
		t.Fatalf("ParsePak() error: %v", err)
	}
	if pak.SegmentCount() != 1 {
		t.Errorf("SegmentCount() = %d, want 1", pak.SegmentCount())
	}
}

func TestParsePakRepairsBadChecksum(t *testing.T) {
	s0 := newSegment(1, 0, SegTypeFirst, 0, []byte("payload")).Frame()
	s0[len(s0)-1] ^= 0xFF // stale CRC

	pak, err := ParsePak(1, buildPakFile(s0))
	if err != nil {
		t.Fatalf("ParsePak() error: %v", err)
	}
	got, err := pak.Segment(0)
	if err != nil {
		t.Fatalf("Segment(0) error: %v", err)
	}
	if !VerifyChecksum(got) {
		t.Error("served segment still carries a bad CRC")
	}
}

func TestParsePakErrors(t *testing.T) {
	valid := newSegment(1, 0, SegTypeFirst, 0, []byte("x")).Frame()

	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "empty file",
			data: nil,
		},
		{
			name: "only fill bytes",
			data: []byte{PakFillByte, PakFillByte},
		},
		{
			name: "truncated length prefix",
			data: []byte{0x05},
		},
		{
			name: "record length too small",
			data: []byte{0x03, 0x00, 0x01, 0x02, 0x03},
		},
		{
			name: "record length past end of file",
			data: []byte{0xFF, 0x01, 0x00},
		},
		{
			name: "duplicate segment index",
			data: buildPakFile(valid, valid),
		},
		{
			name: "non-contiguous indexes",
			data: buildPakFile(newSegment(1, 1, SegTypeLast, 0, []byte("x")).Frame()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePak(1, tt.data); err == nil {
				t.Error("ParsePak() accepted malformed input")
			}
		})
	}
}

func TestPakifyImageRoundTrip(t *testing.T) {
	sizes := []int{1, 100, MaxPayloadSize - 1, MaxPayloadSize, MaxPayloadSize + 1, 2*MaxPayloadSize + 500}
	for _, size := range sizes {
		image := make([]byte, size)
		for i := range image {
			image[i] = byte(i * 7)
		}

		pak := PakifyImage(2, image)
		if got := pak.Image(); !bytes.Equal(got, image) {
			t.Errorf("size %d: Image() does not reproduce the source image", size)
		}
	}
}

func TestPakifyImageSegmentShape(t *testing.T) {
	image := make([]byte, 2*MaxPayloadSize+10)
	pak := PakifyImage(3, image)

	if pak.SegmentCount() != 3 {
		t.Fatalf("SegmentCount() = %d, want 3", pak.SegmentCount())
	}

	wantTypes := []byte{SegTypeFirst, SegTypeMiddle, SegTypeLast}
	for i, wantType := range wantTypes {
		frame, err := pak.Segment(byte(i))
		if err != nil {
			t.Fatalf("Segment(%d) error: %v", i, err)
		}
		if !VerifyChecksum(frame) {
			t.Errorf("segment %d carries an invalid CRC", i)
		}
		seg, err := ParseSegment(frame)
		if err != nil {
			t.Fatalf("ParseSegment(%d) error: %v", i, err)
		}
		if seg.Type != wantType {
			t.Errorf("segment %d type = 0x%02X, want 0x%02X", i, seg.Type, wantType)
		}
		if seg.Index != byte(i) {
			t.Errorf("segment %d index = %d", i, seg.Index)
		}
		if seg.Offset != uint16(i*MaxPayloadSize) {
			t.Errorf("segment %d offset = %d, want %d", i, seg.Offset, i*MaxPayloadSize)
		}
	}
}

func TestPakifyImageSingleSegment(t *testing.T) {
	pak := PakifyImage(4, []byte("tiny"))
	frame, err := pak.Segment(0)
	if err != nil {
		t.Fatalf("Segment(0) error: %v", err)
	}
	seg, _ := ParseSegment(frame)
	if seg.Type != SegTypeFirst {
		t.Errorf("single segment type = 0x%02X, want 0x%02X", seg.Type, SegTypeFirst)
	}
}

func TestPakifyImageEmpty(t *testing.T) {
	pak := PakifyImage(5, nil)
	if pak.SegmentCount() != 0 {
		t.Errorf("SegmentCount() = %d, want 0", pak.SegmentCount())
	}
	if _, err := pak.Segment(0); !IsSegmentRange(err) {
		t.Errorf("Segment(0) error = %v, want segment range error", err)
	}
}

func TestSegmentIndexBoundary(t *testing.T) {
	image := make([]byte, MaxPayloadSize+100)
	for i := range image {
		image[i] = byte(i)
	}
	pak := PakifyImage(6, image)
	last := byte(pak.SegmentCount() - 1)

	frame, err := pak.Segment(last)
	if err != nil {
		t.Fatalf("Segment(last) error: %v", err)
	}
	tail := frame[HeaderSize : len(frame)-CRCSize]
	if !bytes.Equal(tail, image[MaxPayloadSize:]) {
		t.Error("final segment payload does not match the image tail")
	}

	if _, err := pak.Segment(last + 1); !IsSegmentRange(err) {
		t.Errorf("Segment(last+1) error = %v, want segment range error", err)
	}
}
