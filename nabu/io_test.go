package nabu

import (
	"bytes"
	"testing"
)

func TestSessionIOReadAndDrain(t *testing.T) {
	input := bytes.NewReader([]byte{0x85, 0x01, 0x00, 0xAA})
	sio := newSessionIO(input, &bytes.Buffer{}, 0, NoopLogger{})

	op, err := sio.ReadByte()
	if err != nil {
		t.Fatal(err)
	}
	if op != 0x85 {
		t.Fatalf("ReadByte() = 0x%02x, want 0x85", op)
	}

	var code [2]byte
	if err := sio.ReadFull(code[:]); err != nil {
		t.Fatal(err)
	}
	if code != [2]byte{0x01, 0x00} {
		t.Fatalf("ReadFull() = % x", code)
	}

	// Drain consumes only what is already buffered.
	if extra := sio.Drain(); !bytes.Equal(extra, []byte{0xAA}) {
		t.Fatalf("Drain() = % x, want aa", extra)
	}
	if extra := sio.Drain(); extra != nil {
		t.Fatalf("second Drain() = % x, want nil", extra)
	}
}

func TestSessionIOChunkedWrite(t *testing.T) {
	var writes [][]byte
	sink := writerFunc(func(p []byte) (int, error) {
		writes = append(writes, append([]byte(nil), p...))
		return len(p), nil
	})

	sio := newSessionIO(bytes.NewReader(nil), sink, 4, NoopLogger{})
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	n, err := sio.Write(data)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data) {
		t.Fatalf("Write() = %d, want %d", n, len(data))
	}

	wantLens := []int{4, 4, 2}
	if len(writes) != len(wantLens) {
		t.Fatalf("write calls = %d, want %d", len(writes), len(wantLens))
	}
	var joined []byte
	for i, w := range writes {
		if len(w) != wantLens[i] {
			t.Errorf("write %d length = %d, want %d", i, len(w), wantLens[i])
		}
		joined = append(joined, w...)
	}
	if !bytes.Equal(joined, data) {
		t.Errorf("joined writes = % x, want % x", joined, data)
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
