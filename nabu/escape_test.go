package nabu

import (
	"bytes"
	"testing"
)

func TestEscapeBytes(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected []byte
	}{
		{"no escapes", []byte{0x01, 0x02, 0xE1}, []byte{0x01, 0x02, 0xE1}},
		{"single escape", []byte{0x10}, []byte{0x10, 0x10}},
		{"embedded escape", []byte{0x01, 0x10, 0x02}, []byte{0x01, 0x10, 0x10, 0x02}},
		{"adjacent escapes", []byte{0x10, 0x10}, []byte{0x10, 0x10, 0x10, 0x10}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeBytes(tt.data)
			if !bytes.Equal(got, tt.expected) {
				t.Errorf("EscapeBytes(% x) = % x, want % x", tt.data, got, tt.expected)
			}
		})
	}
}

func TestEscapeWriter(t *testing.T) {
	var out bytes.Buffer
	w := newEscapeWriter(&out)
	if _, err := w.Write([]byte{0x01, 0x10, 0x02}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteByte(0x10); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x10, 0x10, 0x02, 0x10, 0x10}
	if !bytes.Equal(out.Bytes(), want) {
		t.Errorf("escaped stream = % x, want % x", out.Bytes(), want)
	}
}
