package nabu

// Pak is one loadable program: an ordered set of framed segments.
// Immutable once built; a Pak is shared read-only across requests.
//
// On disk a pak file is a concatenation of length-prefixed records:
//
//	+--------------+------------------------------+
//	| length (u16, | segment: header + payload +  |
//	|  LSB first)  |          CRC                 |
//	+--------------+------------------------------+
//
// possibly padded at the end with PakFillByte.
type Pak struct {
	// ID is the pak id the segments carry
	ID uint32

	segments [][]byte
}

// ParsePak decodes a pre-segmented pak stream. It trims trailing fill
// bytes, checks structural consistency (record lengths, contiguous
// indexes starting at zero) and verifies each stored CRC, re-framing
// any segment whose stored code is wrong so no corrupt frame is ever
// served.
func ParsePak(id uint32, data []byte) (*Pak, error) {
	end := len(data)
	for end > 0 && data[end-1] == PakFillByte {
		end--
	}
	data = data[:end]
	if len(data) == 0 {
		return nil, NewPakError(ErrStorageRead, "empty pak file", id)
	}

	byIndex := make(map[byte][]byte)
	for pos := 0; pos < len(data); {
		if len(data)-pos < 2 {
			return nil, NewPakError(ErrStorageRead, "truncated record length", id)
		}
		recLen := int(data[pos]) | int(data[pos+1])<<8
		pos += 2
		if recLen < HeaderSize+CRCSize || recLen > MaxSegmentSize {
			return nil, NewPakError(ErrStorageRead, "record length out of bounds", id)
		}
		if pos+recLen > len(data) {
			return nil, NewPakError(ErrStorageRead, "truncated segment record", id)
		}
		frame := data[pos : pos+recLen]
		pos += recLen

		seg, err := ParseSegment(frame)
		if err != nil {
			return nil, NewPakError(ErrStorageRead, "bad segment header", id)
		}
		if !VerifyChecksum(frame) {
			// Repair rather than reject: some archived pak files
			// carry stale CRCs.
			frame = AppendChecksum(append([]byte(nil), frame[:len(frame)-CRCSize]...))
		} else {
			frame = append([]byte(nil), frame...)
		}
		if _, dup := byIndex[seg.Index]; dup {
			return nil, NewPakError(ErrStorageRead, "duplicate segment index", id)
		}
		byIndex[seg.Index] = frame
	}

	segments := make([][]byte, len(byIndex))
	for i := range segments {
		frame, ok := byIndex[byte(i)]
		if !ok {
			return nil, NewPakError(ErrStorageRead, "non-contiguous segment indexes", id)
		}
		segments[i] = frame
	}
	return &Pak{ID: id, segments: segments}, nil
}

// PakifyImage segments a raw program image into frames identical in
// shape to pre-segmented pak contents. The image is split into
// MaxPayloadSize chunks; the first segment is typed SegTypeFirst, the
// final one SegTypeLast, everything between SegTypeMiddle. An empty
// image yields a pak with no segments.
func PakifyImage(id uint32, image []byte) *Pak {
	pak := &Pak{ID: id}
	for off := 0; off < len(image); off += MaxPayloadSize {
		chunkEnd := off + MaxPayloadSize
		if chunkEnd > len(image) {
			chunkEnd = len(image)
		}
		index := byte(off / MaxPayloadSize)
		segType := byte(SegTypeMiddle)
		switch {
		case index == 0:
			segType = SegTypeFirst
		case chunkEnd == len(image):
			segType = SegTypeLast
		}
		seg := newSegment(id, index, segType, uint16(off), image[off:chunkEnd])
		pak.segments = append(pak.segments, seg.Frame())
	}
	return pak
}

// SegmentCount returns the number of segments in the pak.
func (p *Pak) SegmentCount() int {
	return len(p.segments)
}

// Segment returns the framed wire bytes for one segment index.
// An index past the last segment is ErrSegmentRange, never truncation
// or wraparound.
func (p *Pak) Segment(index byte) ([]byte, error) {
	if int(index) >= len(p.segments) {
		return nil, NewPakError(ErrSegmentRange, "no such segment", p.ID)
	}
	return p.segments[index], nil
}

// Image reconstructs the original program image by concatenating the
// segment payloads in index order.
func (p *Pak) Image() []byte {
	var image []byte
	for _, frame := range p.segments {
		image = append(image, frame[HeaderSize:len(frame)-CRCSize]...)
	}
	return image
}
