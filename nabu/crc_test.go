package nabu

import "testing"

func TestChecksum(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0xFFFF, // initial register untouched
		},
		{
			name:     "check string",
			data:     []byte("123456789"),
			expected: 0x29B1, // CRC-16/CCITT-FALSE check value
		},
		{
			name:     "short ascii",
			data:     []byte("NABU"),
			expected: 0x0365,
		},
		{
			name:     "binary ramp",
			data:     []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			expected: 0x3B37,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Checksum(tt.data)
			if result != tt.expected {
				t.Errorf("Checksum() = 0x%04X, want 0x%04X", result, tt.expected)
			}
		})
	}
}

func TestChecksumBytes(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected [2]byte
	}{
		{
			name:     "check string",
			data:     []byte("123456789"),
			expected: [2]byte{0xD6, 0x4E}, // 0x29B1 with both bytes inverted
		},
		{
			name:     "empty data",
			data:     []byte{},
			expected: [2]byte{0x00, 0x00},
		},
		{
			name:     "short ascii",
			data:     []byte("NABU"),
			expected: [2]byte{0xFC, 0x9A},
		},
		{
			name:     "binary ramp",
			data:     []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
			expected: [2]byte{0xC4, 0xC8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ChecksumBytes(tt.data)
			if result != tt.expected {
				t.Errorf("ChecksumBytes() = %02x %02x, want %02x %02x",
					result[0], result[1], tt.expected[0], tt.expected[1])
			}
		})
	}
}

func TestChecksumDeterminism(t *testing.T) {
	data := []byte("the same input must always yield the same code")
	first := Checksum(data)
	for i := 0; i < 100; i++ {
		if got := Checksum(data); got != first {
			t.Fatalf("Checksum() = 0x%04X on call %d, want 0x%04X", got, i, first)
		}
	}
}

func TestChecksumSingleBitCorruption(t *testing.T) {
	data := []byte("HELLO, NABU!")
	reference := Checksum(data)

	corrupted := make([]byte, len(data))
	for i := range data {
		for bit := 0; bit < 8; bit++ {
			copy(corrupted, data)
			corrupted[i] ^= 1 << bit
			if Checksum(corrupted) == reference {
				t.Errorf("flipping byte %d bit %d did not change the code", i, bit)
			}
		}
	}
}

func TestAppendAndVerifyChecksum(t *testing.T) {
	framed := AppendChecksum([]byte("HELLO, NABU!"))
	if !VerifyChecksum(framed) {
		t.Fatal("VerifyChecksum() = false for freshly framed data")
	}

	framed[0] ^= 0x01
	if VerifyChecksum(framed) {
		t.Error("VerifyChecksum() = true for corrupted data")
	}
}

func TestVerifyChecksumTooShort(t *testing.T) {
	if VerifyChecksum([]byte{0xAB}) {
		t.Error("VerifyChecksum() = true for input shorter than the code")
	}
}
