package nabu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Session drives one half-duplex adapter session: it reads request
// opcodes from the link, consults the Store, and writes the framed
// responses back. Exactly one command is processed to completion before
// the next is read; the only blocking point is waiting for the client.
type Session struct {
	// I/O
	io *sessionIO

	// Collaborators
	store *Store

	// Configuration
	config *Config

	// Callbacks
	callbacks *Callbacks

	// Context
	ctx context.Context

	// Logger
	logger Logger

	// Stats
	stats *ServiceStats

	// Session state: the channel code the client has set, empty when
	// none. Held here, not globally, so a multi-session extension is
	// mechanical.
	channelCode string
}

// Config holds session configuration.
type Config struct {
	// ChunkSize is the largest write handed to the transport at once
	ChunkSize int

	// ChannelCode presets the session channel code; empty means the
	// client is asked to set one
	ChannelCode string

	// TimeSource supplies the clock for time segments
	TimeSource func() time.Time
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:  64,
		TimeSource: time.Now,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithConfig sets the session configuration.
func WithConfig(config *Config) Option {
	return func(s *Session) {
		if config.TimeSource == nil {
			config.TimeSource = time.Now
		}
		s.config = config
	}
}

// WithCallbacks sets the session callbacks.
func WithCallbacks(callbacks *Callbacks) Option {
	return func(s *Session) {
		s.callbacks = mergeCallbacks(callbacks)
	}
}

// WithContext sets the session context.
func WithContext(ctx context.Context) Option {
	return func(s *Session) {
		s.ctx = ctx
	}
}

// WithLogger sets a logger for protocol debugging.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithStats attaches a service-time recorder.
func WithStats(stats *ServiceStats) Option {
	return func(s *Session) {
		s.stats = stats
	}
}

// NewSession creates a session over a byte transport.
func NewSession(reader io.Reader, writer io.Writer, store *Store, opts ...Option) *Session {
	s := &Session{
		store:     store,
		config:    DefaultConfig(),
		callbacks: defaultCallbacks(),
		ctx:       context.Background(),
		logger:    NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.channelCode = s.config.ChannelCode
	s.io = newSessionIO(reader, writer, s.config.ChunkSize, s.logger)
	s.io.SetContext(s.ctx)
	return s
}

// ChannelCode returns the session's current channel code, empty when
// the client has not set one.
func (s *Session) ChannelCode() string {
	return s.channelCode
}

// Serve runs the command loop until the transport closes or the context
// is cancelled. Request failures (unknown pak, bad index, decrypt or
// fetch errors) are answered on the wire and never end the loop.
func (s *Session) Serve() error {
	s.event(EventSessionStart, "session started", 0)
	defer s.event(EventSessionEnd, "session ended", 0)

	for {
		op, err := s.io.ReadByte()
		if err != nil {
			return s.closed(err)
		}

		s.callbacks.OnRequest(op)
		s.logger.Info("handling request: [0x%02x] %s", op, RequestName(op))

		if err := s.dispatch(op); err != nil {
			return s.closed(err)
		}
	}
}

// dispatch routes one opcode. A returned error means the transport is
// unusable; everything else is handled in place.
func (s *Session) dispatch(op byte) error {
	switch op {
	case ReqReset:
		return s.handleReset()
	case ReqResetSegment:
		return s.handleResetSegment()
	case ReqGetStatus:
		return s.handleGetStatus()
	case ReqSetStatus:
		return s.handleSetStatus()
	case ReqSetChannel:
		return s.handleSetChannel()
	case ReqSegment:
		return s.handleSegmentRequest()
	case ReqTime:
		return s.handleTime()
	case ReqMystery:
		return s.handleMystery()
	case NoiseA, NoiseB, NoiseC:
		return s.send(MsgConfirm)
	default:
		s.logger.Error("[0x%02x] - unimplemented request", op)
		return nil
	}
}

// handleReset acknowledges a reset and clears the session's channel
// selection back to the configured preset.
func (s *Session) handleReset() error {
	s.channelCode = s.config.ChannelCode
	return s.send(MsgEscape, MsgACK)
}

func (s *Session) handleResetSegment() error {
	return s.send(MsgEscape, MsgACK, MsgConfirm)
}

// handleGetStatus tells the client whether it still needs to supply a
// channel code.
func (s *Session) handleGetStatus() error {
	if err := s.send(MsgEscape, MsgACK); err != nil {
		return err
	}
	if extra := s.io.Drain(); len(extra) > 0 {
		s.logger.Debug("status payload: [%s]", formatHex(extra))
	}
	if s.channelCode == "" {
		s.logger.Info("channel code is not set yet")
		return s.send(MsgChannelUnset, MsgEscape, MsgFinished)
	}
	s.logger.Info("channel code is set to %s", s.channelCode)
	return s.send(MsgChannelSet, MsgEscape, MsgFinished)
}

func (s *Session) handleSetStatus() error {
	return s.send(MsgEscape, MsgACK, MsgConfirm)
}

// handleSetChannel reads the 2-byte channel code (LSB first) and holds
// it for the rest of the session.
func (s *Session) handleSetChannel() error {
	if err := s.send(MsgEscape, MsgACK); err != nil {
		return err
	}
	var code [2]byte
	if err := s.io.ReadFull(code[:]); err != nil {
		return err
	}
	s.channelCode = fmt.Sprintf("%02x%02x", code[1], code[0])
	s.logger.Info("channel code set to %s", s.channelCode)
	s.event(EventChannelSet, s.channelCode, ReqSetChannel)
	return s.send(MsgConfirm)
}

// handleTime serves the date/time segment directly, outside the
// authorization exchange. Some client ROMs poll this while idling.
func (s *Session) handleTime() error {
	frame := TimeSegment(s.config.TimeSource())
	if _, err := s.io.Write(frame); err != nil {
		return err
	}
	s.logger.Debug("sent time segment [%s]", formatHex(frame))
	return s.send(MsgEscape, MsgFinished)
}

// handleMystery drains whatever argument bytes came with the opcode and
// confirms. Meaning unknown; observed from some ROM revisions.
func (s *Session) handleMystery() error {
	if extra := s.io.Drain(); len(extra) > 0 {
		s.logger.Debug("mystery payload: [%s]", formatHex(extra))
	}
	return s.send(MsgConfirm)
}

// handleSegmentRequest is the load path: decode (index, pak id), fetch
// the framed segment, and send it escaped. Any resolution failure is
// answered with MsgUnauthorized so the client can retry or pick another
// program without reconnecting; no partial frame is ever written.
func (s *Session) handleSegmentRequest() error {
	start := time.Now()

	if err := s.send(MsgEscape, MsgACK); err != nil {
		return err
	}

	// 1-byte segment index, then 3-byte pak id LSB first.
	var args [4]byte
	if err := s.io.ReadFull(args[:]); err != nil {
		return err
	}
	index := args[0]
	pakID := uint32(args[3])<<16 | uint32(args[2])<<8 | uint32(args[1])
	s.logger.Debug("requested pak %06X segment %d", pakID, index)

	frame, err := s.resolveSegment(pakID, index)
	if err != nil {
		s.logger.Error("segment request failed: %v", err)
		s.callbacks.OnError(err, "segment request")
		s.event(EventSegmentDenied, err.Error(), ReqSegment)
		return s.send(MsgConfirm, MsgUnauthorized)
	}

	if err := s.send(MsgConfirm, MsgAuthorized); err != nil {
		return err
	}

	// The client acknowledges authorization with two status bytes
	// before the frame goes out.
	var status [2]byte
	if err := s.io.ReadFull(status[:]); err != nil {
		return err
	}
	s.logger.Debug("client status: [%s]", formatHex(status[:]))

	if _, err := s.io.Write(EscapeBytes(frame)); err != nil {
		return err
	}
	if err := s.send(MsgEscape, MsgFinished); err != nil {
		return err
	}

	took := time.Since(start)
	s.callbacks.OnSegmentSent(pakID, index, len(frame), took)
	s.event(EventSegmentServed, fmt.Sprintf("pak %06X segment %d", pakID, index), ReqSegment)
	if s.stats != nil {
		s.stats.Record(took, len(frame))
	}
	return nil
}

// resolveSegment produces the framed segment for a request: the fixed
// time pak is synthesized, everything else comes from the store.
func (s *Session) resolveSegment(pakID uint32, index byte) ([]byte, error) {
	if pakID == TimePakID {
		if index != 0 {
			return nil, NewPakError(ErrSegmentRange, "time pak has one segment", pakID)
		}
		return TimeSegment(s.config.TimeSource()), nil
	}

	loaded := s.store.Cached(pakID)
	frame, err := s.store.Segment(s.ctx, pakID, index)
	if err != nil {
		return nil, err
	}
	if !loaded {
		if pak, perr := s.store.Get(s.ctx, pakID); perr == nil {
			s.logger.Info("loaded pak %06X (%d segments)", pakID, pak.SegmentCount())
			s.callbacks.OnProgramLoad(pakID, pak.SegmentCount())
		}
	}
	return frame, nil
}

// send writes a short control sequence.
func (s *Session) send(bytes ...byte) error {
	_, err := s.io.Write(bytes)
	return err
}

// closed normalizes transport shutdown: clean EOF and context
// cancellation end the loop without error, anything else is surfaced as
// a transport failure.
func (s *Session) closed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info("transport closed")
		return nil
	}
	return WrapError(ErrTransportClosed, "transport failure", -1, err)
}

func (s *Session) event(t EventType, msg string, op byte) {
	s.callbacks.OnEvent(Event{
		Type:      t,
		Message:   msg,
		Request:   op,
		Timestamp: time.Now(),
	})
}
