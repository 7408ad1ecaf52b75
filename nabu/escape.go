package nabu

import "io"

// Segment data is escaped on the wire by doubling every MsgEscape byte,
// so the client can tell payload 0x10s apart from the 0x10 that starts
// control sequences such as MsgEscape MsgFinished.

// EscapeBytes returns data with every escape byte doubled.
func EscapeBytes(data []byte) []byte {
	extra := 0
	for _, b := range data {
		if b == MsgEscape {
			extra++
		}
	}
	if extra == 0 {
		return data
	}
	escaped := make([]byte, 0, len(data)+extra)
	for _, b := range data {
		escaped = append(escaped, b)
		if b == MsgEscape {
			escaped = append(escaped, b)
		}
	}
	return escaped
}

// escapeWriter doubles escape bytes on the way to an underlying writer.
type escapeWriter struct {
	writer io.Writer
}

func newEscapeWriter(writer io.Writer) *escapeWriter {
	return &escapeWriter{writer: writer}
}

// WriteByte writes a single byte, doubled if it is the escape byte.
func (e *escapeWriter) WriteByte(b byte) error {
	if b == MsgEscape {
		_, err := e.writer.Write([]byte{b, b})
		return err
	}
	_, err := e.writer.Write([]byte{b})
	return err
}

// Write writes bytes with escape doubling. The returned count is the
// number of input bytes consumed, not the number put on the wire.
func (e *escapeWriter) Write(buf []byte) (int, error) {
	written := 0
	for _, b := range buf {
		if err := e.WriteByte(b); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
