package nabu

// CRC parameters. The NABU client firmware computes CRC-16/CCITT-FALSE
// (polynomial 0x1021, initial value 0xFFFF) over the segment header and
// payload, then stores both code bytes inverted. The adapter must match
// it bit for bit or the client rejects every segment.
const (
	// CRCPolynomial is the CCITT CRC-16 polynomial
	CRCPolynomial = 0x1021

	// CRCInit is the initial CRC register value
	CRCInit = 0xFFFF

	// CRCFinalXOR is applied to each stored code byte
	CRCFinalXOR = 0xFF
)

// crcTable is the byte-indexed CCITT lookup table.
var crcTable [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ CRCPolynomial
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// UpdateCRC feeds one byte into a running CRC register.
func UpdateCRC(crc uint16, b byte) uint16 {
	return crc<<8 ^ crcTable[byte(crc>>8)^b]
}

// Checksum computes the raw CRC register value for data, before the
// final inversion. Pure: same input always yields the same code.
func Checksum(data []byte) uint16 {
	crc := uint16(CRCInit)
	for _, b := range data {
		crc = UpdateCRC(crc, b)
	}
	return crc
}

// ChecksumBytes computes the two inverted code bytes stored at the end
// of a wire segment, high byte first.
func ChecksumBytes(data []byte) [CRCSize]byte {
	crc := Checksum(data)
	return [CRCSize]byte{byte(crc>>8) ^ CRCFinalXOR, byte(crc) ^ CRCFinalXOR}
}

// AppendChecksum returns data with its two code bytes appended.
func AppendChecksum(data []byte) []byte {
	code := ChecksumBytes(data)
	return append(data, code[0], code[1])
}

// VerifyChecksum reports whether the final two bytes of a framed
// segment match the code computed over the preceding bytes.
func VerifyChecksum(framed []byte) bool {
	if len(framed) < CRCSize {
		return false
	}
	code := ChecksumBytes(framed[:len(framed)-CRCSize])
	return framed[len(framed)-CRCSize] == code[0] && framed[len(framed)-1] == code[1]
}
