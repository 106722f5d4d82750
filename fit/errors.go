package fit

import "errors"

// Validation errors (§4.1).
var (
	ErrTooSmall       = errors.New("fit: blob shorter than minimum header size")
	ErrHeaderSize     = errors.New("fit: header size out of range")
	ErrBadSignature   = errors.New("fit: signature bytes do not read \".FIT\"")
	ErrTooLarge       = errors.New("fit: blob exceeds the 50MB size limit")
)

// Desync / format errors (§7c).
var (
	ErrFieldCountRange = errors.New("fit: definition message field count exceeds 100")
	ErrUndefinedLocal  = errors.New("fit: data message references an undefined local message type")
	ErrBufferOverrun   = errors.New("fit: field read would exceed the remaining buffer")
)

const (
	maxBlobSize      = 50 * 1024 * 1024 // §4.1
	maxFieldCount    = 100              // §4.2
	maxFieldSize     = 8                // §4.2
	protocolWarnByte = 20               // §4.1
)
