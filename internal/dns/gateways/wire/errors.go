package wire

import "fmt"

// DecodeErrorKind classifies message decode failures so the serving layer
// can decide between answering FORMERR and dropping the datagram outright.
type DecodeErrorKind int

const (
	// KindBadHeader means the fixed header itself could not be read; no
	// response can be correlated to the request.
	KindBadHeader DecodeErrorKind = iota
	// KindTruncated means a section claimed more data than the message holds.
	KindTruncated
	// KindInvalidLabel means a name label was malformed.
	KindInvalidLabel
	// KindCompressionLoop means name decompression exceeded the pointer
	// budget or pointed forward.
	KindCompressionLoop
	// KindBadRdataLength means a record's RDLENGTH disagreed with its
	// contents.
	KindBadRdataLength
)

// DecodeError is any failure while parsing a wire message.
type DecodeError struct {
	Kind   DecodeErrorKind
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at offset %d: %s", e.Offset, e.Detail)
}

func decodeErr(kind DecodeErrorKind, offset int, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}
