package nabu

import (
	"context"
	"io"
)

// sessionIO provides buffered reads and chunked writes over the serial
// link. Reading blocks until the client sends something; the client
// drives pacing, so there is no read timeout. Context cancellation is
// checked before each blocking read.
type sessionIO struct {
	reader    io.Reader
	writer    io.Writer
	rbuf      []byte
	rpos      int
	rleft     int
	chunkSize int
	ctx       context.Context
	logger    Logger
}

func newSessionIO(reader io.Reader, writer io.Writer, chunkSize int, logger Logger) *sessionIO {
	if chunkSize <= 0 {
		chunkSize = 64
	}
	return &sessionIO{
		reader:    reader,
		writer:    writer,
		rbuf:      make([]byte, 4096),
		chunkSize: chunkSize,
		ctx:       context.Background(),
		logger:    logger,
	}
}

// SetContext sets the context for cancellation.
func (s *sessionIO) SetContext(ctx context.Context) {
	s.ctx = ctx
}

// ReadByte reads a single byte, refilling the buffer from the link when
// it runs dry.
func (s *sessionIO) ReadByte() (byte, error) {
	if s.rleft > 0 {
		s.rleft--
		b := s.rbuf[s.rpos]
		s.rpos++
		return b, nil
	}
	return s.fill()
}

func (s *sessionIO) fill() (byte, error) {
	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			return 0, s.ctx.Err()
		default:
		}
	}

	s.rpos = 0
	n, err := s.reader.Read(s.rbuf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return 0, err
	}
	s.logger.Debug("NPC-->NA: [%s]", formatHex(s.rbuf[:n]))

	s.rleft = n - 1
	s.rpos = 1
	return s.rbuf[0], nil
}

// ReadFull reads exactly len(buf) bytes, waiting across line pauses the
// way the original adapter firmware does.
func (s *sessionIO) ReadFull(buf []byte) error {
	for i := range buf {
		b, err := s.ReadByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}

// Drain consumes and returns whatever input is already buffered without
// blocking for more.
func (s *sessionIO) Drain() []byte {
	if s.rleft == 0 {
		return nil
	}
	buffered := append([]byte(nil), s.rbuf[s.rpos:s.rpos+s.rleft]...)
	s.rpos = 0
	s.rleft = 0
	return buffered
}

// Write sends bytes down the link in chunks, so slow RS-422 receivers
// are never handed more than one chunk per wire transaction.
func (s *sessionIO) Write(data []byte) (int, error) {
	total := 0
	for total < len(data) {
		end := total + s.chunkSize
		if end > len(data) {
			end = len(data)
		}
		n, err := s.writer.Write(data[total:end])
		total += n
		if err != nil {
			return total, err
		}
		s.logger.Debug("NA-->NPC: [%s]", formatHex(data[total-n:total]))
	}
	return total, nil
}

// Flush flushes the underlying writer if it buffers.
func (s *sessionIO) Flush() error {
	if f, ok := s.writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
