package xerrors

import "fmt"

// RecordReason identifies which part of a 64-byte record failed to decode.
type RecordReason string

const (
	// ReasonCannotUnpack means the raw bytes did not match the record's
	// fixed field layout at all (wrong length, missing separators).
	ReasonCannotUnpack RecordReason = "cannot unpack"
	// ReasonCannotDecodeResource means the resource field was not valid
	// NUL-padded ASCII.
	ReasonCannotDecodeResource RecordReason = "cannot decode resource"
	// ReasonCannotParseOffset means the offset field was not an 11-digit
	// decimal integer.
	ReasonCannotParseOffset RecordReason = "cannot parse offset"
)

// RecordError reports a 64-byte index record that failed to decode. It
// carries the raw bytes so callers can log or hex-dump them without a
// second read of the slot.
type RecordError struct {
	*BaseError

	reason RecordReason
	raw    [64]byte
}

// NewRecordError creates a RecordError for the given reason, capturing a
// copy of raw.
func NewRecordError(reason RecordReason, raw []byte) *RecordError {
	re := &RecordError{reason: reason}
	re.BaseError = NewBaseError(nil, ErrorCodeInvalidRecord,
		fmt.Sprintf("invalid record: %s", reason))
	copy(re.raw[:], raw)

	return re
}

// WithDetail attaches a key/value pair of debugging context and returns re
// itself, so chained calls keep the *RecordError type.
func (re *RecordError) WithDetail(key string, value any) *RecordError {
	re.BaseError.WithDetail(key, value)

	return re
}

// Reason returns why decoding failed.
func (re *RecordError) Reason() RecordReason {
	return re.reason
}

// Raw returns the 64 bytes that failed to decode.
func (re *RecordError) Raw() [64]byte {
	return re.raw
}
