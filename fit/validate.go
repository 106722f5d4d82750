package fit

import (
	"github.com/sirupsen/logrus"
)

// ValidateFIT performs the header sanity and size-limit checks of §4.1
// without decoding a single record. It mirrors the teacher's practice
// (file.go's Info()) of reading the leading header record before
// trusting the rest of the stream, but stops short of decoding it.
func ValidateFIT(blob []byte) error {
	if len(blob) < 12 {
		return ErrTooSmall
	}
	if len(blob) > maxBlobSize {
		return ErrTooLarge
	}

	headerSize := int(blob[0])
	if headerSize < 12 || headerSize > len(blob) {
		return ErrHeaderSize
	}

	// Signature occupies bytes [8:12) of the header regardless of whether
	// the header is the 12- or 14-byte variant.
	if headerSize < 12 || string(blob[8:12]) != ".FIT" {
		return ErrBadSignature
	}

	protocolVersion := blob[1]
	if protocolVersion > protocolWarnByte {
		logrus.WithFields(logrus.Fields{
			"protocol_version": protocolVersion,
		}).Warn("fit: protocol version newer than this decoder was written against")
	}

	return nil
}
