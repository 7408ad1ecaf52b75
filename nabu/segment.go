package nabu

import "time"

// Segment is one addressable chunk of a pak as transmitted on the wire.
//
// The wire layout is a 16-byte header, the payload, and a 2-byte CRC:
//
//	bytes 0-2:   pak id (MSB first)
//	byte  3:     segment index (first segment is 0)
//	byte  4:     pak owner
//	bytes 5-8:   pak tier
//	bytes 9-10:  mystery bytes
//	byte  11:    segment type
//	byte  12:    segment index echo
//	byte  13:    always zero
//	bytes 14-15: offset of the payload within the unsegmented image (MSB first)
type Segment struct {
	PakID   uint32
	Index   byte
	Owner   byte
	Tier    [4]byte
	Mystery [2]byte
	Type    byte
	Offset  uint16
	Payload []byte
}

// Frame returns the wire representation of the segment: header, payload
// and trailing CRC. Framing is deterministic: the same segment always
// produces byte-identical output.
func (s *Segment) Frame() []byte {
	frame := make([]byte, 0, HeaderSize+len(s.Payload)+CRCSize)
	frame = append(frame,
		byte(s.PakID>>16), byte(s.PakID>>8), byte(s.PakID),
		s.Index,
		s.Owner,
		s.Tier[0], s.Tier[1], s.Tier[2], s.Tier[3],
		s.Mystery[0], s.Mystery[1],
		s.Type,
		s.Index, 0,
		byte(s.Offset>>8), byte(s.Offset),
	)
	frame = append(frame, s.Payload...)
	return AppendChecksum(frame)
}

// ParseSegment decodes a framed wire segment. The CRC bytes are kept in
// place but not verified here; use VerifyChecksum for that.
func ParseSegment(frame []byte) (*Segment, error) {
	if len(frame) < HeaderSize+CRCSize {
		return nil, NewError(ErrProtocol, "segment shorter than header")
	}
	seg := &Segment{
		PakID:   uint32(frame[0])<<16 | uint32(frame[1])<<8 | uint32(frame[2]),
		Index:   frame[3],
		Owner:   frame[4],
		Tier:    [4]byte{frame[5], frame[6], frame[7], frame[8]},
		Mystery: [2]byte{frame[9], frame[10]},
		Type:    frame[11],
		Offset:  uint16(frame[14])<<8 | uint16(frame[15]),
		Payload: frame[HeaderSize : len(frame)-CRCSize],
	}
	return seg, nil
}

// newSegment builds a segment with the fixed cycle 1 header fields.
func newSegment(pakID uint32, index byte, segType byte, offset uint16, payload []byte) *Segment {
	return &Segment{
		PakID:   pakID,
		Index:   index,
		Owner:   DefaultOwner,
		Tier:    defaultTier,
		Mystery: defaultMystery,
		Type:    segType,
		Offset:  offset,
		Payload: payload,
	}
}

// TimeSegment builds the framed date/time segment served for the
// reserved time pak. The client expects a 9-byte payload: two constant
// 0x02 bytes, the weekday (Monday is 2), a fixed year byte, then month,
// day, hour, minute and second.
func TimeSegment(now time.Time) []byte {
	weekday := byte((int(now.Weekday())+6)%7) + 2
	payload := []byte{
		0x02, 0x02,
		weekday,
		0x55,
		byte(now.Month()),
		byte(now.Day()),
		byte(now.Hour()),
		byte(now.Minute()),
		byte(now.Second()),
	}
	seg := newSegment(TimePakID, 0, SegTypeMiddle, 0, payload)
	return seg.Frame()
}
