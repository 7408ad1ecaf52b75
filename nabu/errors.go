package nabu

import "fmt"

// Error represents a NABU adapter error
type Error struct {
	// Type is the error type
	Type ErrorType

	// Message is a human-readable error message
	Message string

	// PakID is the pak id involved, or -1 if not applicable
	PakID int64

	// Err is the underlying cause, if any
	Err error
}

// ErrorType categorizes adapter errors
type ErrorType int

const (
	// ErrUnknownProgram indicates the requested pak does not exist
	ErrUnknownProgram ErrorType = iota

	// ErrStorageRead indicates a pak file is missing or corrupt
	ErrStorageRead

	// ErrSegmentRange indicates a segment index past the end of a pak
	ErrSegmentRange

	// ErrDecrypt indicates a cloud pak could not be decrypted
	ErrDecrypt

	// ErrNetwork indicates a cloud fetch failure
	ErrNetwork

	// ErrChecksum indicates a CRC mismatch
	ErrChecksum

	// ErrTransportClosed indicates the serial link is gone
	ErrTransportClosed

	// ErrProtocol indicates a malformed request or pak structure
	ErrProtocol
)

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.PakID >= 0 {
		return fmt.Sprintf("nabu %s: %s (pak %06X)", e.Type, msg, e.PakID)
	}
	return fmt.Sprintf("nabu %s: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (t ErrorType) String() string {
	switch t {
	case ErrUnknownProgram:
		return "unknown program"
	case ErrStorageRead:
		return "storage read error"
	case ErrSegmentRange:
		return "segment out of range"
	case ErrDecrypt:
		return "decrypt error"
	case ErrNetwork:
		return "network error"
	case ErrChecksum:
		return "checksum error"
	case ErrTransportClosed:
		return "transport closed"
	case ErrProtocol:
		return "protocol error"
	default:
		return "unknown error"
	}
}

// NewError creates a new adapter error
func NewError(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		PakID:   -1,
	}
}

// NewPakError creates a new adapter error tied to a pak id
func NewPakError(errType ErrorType, message string, pakID uint32) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		PakID:   int64(pakID),
	}
}

// WrapError creates a new adapter error with an underlying cause
func WrapError(errType ErrorType, message string, pakID int64, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		PakID:   pakID,
		Err:     err,
	}
}

// IsUnknownProgram checks if an error indicates a missing pak
func IsUnknownProgram(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrUnknownProgram
	}
	return false
}

// IsSegmentRange checks if an error indicates an out-of-range index
func IsSegmentRange(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrSegmentRange
	}
	return false
}

// IsDecrypt checks if an error is a decrypt error
func IsDecrypt(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrDecrypt
	}
	return false
}

// IsTransportClosed checks if an error indicates a lost link
func IsTransportClosed(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == ErrTransportClosed
	}
	return false
}
