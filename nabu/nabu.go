// Package nabu implements the NABU network adapter serial protocol.
//
// A NABU PC has no local storage: at power-on it boots entirely over its
// serial link by asking the network adapter for numbered segments of a
// program (a "pak") until the load completes. This package provides the
// adapter side of that exchange: the half-duplex command loop, segment
// framing with the client's CRC, pak parsing, on-the-fly segmentation of
// raw program images, and decryption of cloud-distributed paks.
//
// The package is designed as a library around an io.Reader/io.Writer pair.
// Physical serial, TCP and SSH transports are wired up by cmd/nabud.
package nabu

// Request opcodes sent by the NABU PC.
const (
	// ReqTime asks for the current date and time segment
	ReqTime = 0x10

	// ReqResetSegment resets the client's segment handler
	ReqResetSegment = 0x80

	// ReqReset resets the adapter session
	ReqReset = 0x81

	// ReqGetStatus queries whether a channel code has been set
	ReqGetStatus = 0x82

	// ReqSetStatus announces the client's signal status
	ReqSetStatus = 0x83

	// ReqSegment requests one segment of a pak: the opcode is followed
	// by a 1-byte segment index and a 3-byte pak id (LSB first)
	ReqSegment = 0x84

	// ReqSetChannel sets the session channel code: the opcode is
	// followed by 2 code bytes (LSB first)
	ReqSetChannel = 0x85

	// ReqMystery is sent by some client ROMs; its meaning is unknown
	ReqMystery = 0x8F
)

// Noise bytes occasionally seen on the line, likely RS-422 buffer
// overruns. The adapter confirms and carries on.
const (
	NoiseA = 0x03
	NoiseB = 0x0F
	NoiseC = 0xF0
)

// Response bytes sent by the adapter.
const (
	// MsgEscape prefixes two-byte control sequences and is doubled
	// inside escaped segment data
	MsgEscape = 0x10

	// MsgACK follows MsgEscape to acknowledge a request
	MsgACK = 0x06

	// MsgFinished follows MsgEscape to terminate a response
	MsgFinished = 0xE1

	// MsgConfirm confirms receipt of request arguments
	MsgConfirm = 0xE4

	// MsgAuthorized indicates the requested segment follows
	MsgAuthorized = 0x91

	// MsgUnauthorized indicates the requested segment cannot be served
	MsgUnauthorized = 0x90

	// MsgChannelSet reports that the channel code is set
	MsgChannelSet = 0x1F

	// MsgChannelUnset asks the client to supply a channel code
	MsgChannelUnset = 0x9F
)

// Segment geometry. A wire segment is a 16-byte header, at most
// MaxPayloadSize payload bytes, and a 2-byte CRC.
const (
	// HeaderSize is the wire segment header length
	HeaderSize = 16

	// MaxPayloadSize is the maximum payload carried by one segment
	MaxPayloadSize = 991

	// CRCSize is the trailing integrity code length
	CRCSize = 2

	// MaxSegmentSize is the largest possible wire segment
	MaxSegmentSize = HeaderSize + MaxPayloadSize + CRCSize
)

// Segment type bytes.
const (
	// SegTypeFirst marks the first segment of a pak
	SegTypeFirst = 0xA1

	// SegTypeMiddle marks an interior segment
	SegTypeMiddle = 0x20

	// SegTypeLast marks the final segment of a pak
	SegTypeLast = 0x30
)

// Fixed header fields shared by all paks.
const (
	// DefaultOwner is the pak owner byte
	DefaultOwner = 0x01

	// TimePakID is the reserved pak id of the time segment
	TimePakID = 0x7FFFFF

	// PakFillByte pads pak files out to media block boundaries and is
	// trimmed when parsing
	PakFillByte = 0x1A
)

// defaultTier and defaultMystery are the tier and mystery header bytes
// observed in cycle 1 paks.
var (
	defaultTier    = [4]byte{0x7F, 0xFF, 0xFF, 0xFF}
	defaultMystery = [2]byte{0x7F, 0x80}
)

// requestNames provides human-readable names for request opcodes.
// Used for debugging and logging.
var requestNames = map[byte]string{
	ReqTime:         "TIME",
	ReqResetSegment: "RESET-SEGMENT",
	ReqReset:        "RESET",
	ReqGetStatus:    "GET-STATUS",
	ReqSetStatus:    "SET-STATUS",
	ReqSegment:      "SEGMENT",
	ReqSetChannel:   "SET-CHANNEL",
	ReqMystery:      "MYSTERY",
	NoiseA:          "NOISE",
	NoiseB:          "NOISE",
	NoiseC:          "NOISE",
}

// RequestName returns the human-readable name for a request opcode.
// Returns "UNKNOWN" for opcodes the adapter does not implement.
func RequestName(op byte) string {
	if name, ok := requestNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
