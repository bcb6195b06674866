// Package record implements the xlease on-disk record and metadata-block
// codec (component C2). Every function here is a pure, stateless
// byte-slice transform: no file, no index, no lock manager.
package record

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

const (
	// Size is the fixed width of one on-disk record, in bytes.
	Size = 64

	resourceWidth = 48
	offsetWidth   = 11

	offResource  = 0
	offResourceSep = offResource + resourceWidth
	offOffset    = offResourceSep + 1
	offOffsetSep = offOffset + offsetWidth
	offUpdating  = offOffsetSep + 1
	offReserved  = offUpdating + 1
	offTerminator = offReserved + 1
)

func init() {
	if offTerminator+1 != Size {
		panic("record: field layout does not sum to Size")
	}
}

const (
	updatingByte    = 'u'
	notUpdatingByte = '-'
	reservedByte    = '-'
	terminatorByte  = '\n'
)

// Record is the decoded form of one 64-byte index record.
type Record struct {
	// Resource is the lease id occupying the slot, or "" if the slot is
	// free.
	Resource string
	// Offset is the user-lease-slot byte offset the record claims to
	// point at. It is redundant with the record's position in the index
	// and exists only for human inspection (spec §3.3); callers MUST NOT
	// use it for addressing.
	Offset int64
	// Updating is true if the record is mid-mutation (the three-phase
	// protocol in package leases has not yet reached phase 3).
	Updating bool
}

// Empty reports whether the record denotes a free slot.
func (r Record) Empty() bool {
	return r.Resource == ""
}

// Encode renders r as a 64-byte record. It fails with a *xerrors.BaseError
// (code ErrorCodeInvalidInput) if the resource does not fit in 48 bytes of
// printable ASCII (the same bytes Decode accepts in the resource field).
func Encode(r Record) ([Size]byte, error) {
	var buf [Size]byte

	if len(r.Resource) > resourceWidth {
		return buf, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("record: resource too long: %d bytes (max %d)", len(r.Resource), resourceWidth)).
			WithDetail("resource", r.Resource)
	}

	for i := 0; i < len(r.Resource); i++ {
		if b := r.Resource[i]; b < 0x20 || b > 0x7e {
			return buf, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
				fmt.Sprintf("record: resource has non-ASCII byte %#x at %d", b, i)).
				WithDetail("resource", r.Resource)
		}
	}

	if r.Offset < 0 || r.Offset > 99999999999 {
		return buf, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("record: offset %d does not fit in %d decimal digits", r.Offset, offsetWidth))
	}

	copy(buf[offResource:offResourceSep], r.Resource)
	// Zero-pad: the rest of the 48-byte field is already \x00 bytes.

	buf[offResourceSep] = 0

	offsetStr := fmt.Sprintf("%0*d", offsetWidth, r.Offset)
	copy(buf[offOffset:offOffsetSep], offsetStr)

	buf[offOffsetSep] = 0

	if r.Updating {
		buf[offUpdating] = updatingByte
	} else {
		buf[offUpdating] = notUpdatingByte
	}

	buf[offReserved] = reservedByte
	buf[offTerminator] = terminatorByte

	return buf, nil
}

// Decode parses a 64-byte record. buf must be exactly Size bytes.
//
// Possible errors: *xerrors.RecordError with reason ReasonCannotUnpack (wrong
// length or malformed separators/terminator), ReasonCannotDecodeResource
// (resource field is not clean NUL-padded ASCII), or ReasonCannotParseOffset
// (offset field is not an 11-digit decimal integer).
func Decode(buf []byte) (Record, error) {
	if len(buf) != Size {
		return Record{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, buf).
			WithDetail("length", len(buf))
	}

	if buf[offResourceSep] != 0 || buf[offOffsetSep] != 0 ||
		buf[offReserved] != reservedByte || buf[offTerminator] != terminatorByte {
		return Record{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, buf)
	}

	var updating bool

	switch buf[offUpdating] {
	case updatingByte:
		updating = true
	case notUpdatingByte:
		updating = false
	default:
		return Record{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, buf)
	}

	resource, err := decodeResource(buf[offResource:offResourceSep])
	if err != nil {
		return Record{}, xerrors.NewRecordError(xerrors.ReasonCannotDecodeResource, buf)
	}

	offset, err := decodeOffset(buf[offOffset:offOffsetSep])
	if err != nil {
		return Record{}, xerrors.NewRecordError(xerrors.ReasonCannotParseOffset, buf)
	}

	return Record{Resource: resource, Offset: offset, Updating: updating}, nil
}

// decodeResource accepts printable ASCII followed by zero or more NUL bytes,
// and rejects anything else (embedded NULs, non-ASCII, control characters).
func decodeResource(field []byte) (string, error) {
	i := 0
	for i < len(field) && field[i] != 0 {
		if field[i] < 0x20 || field[i] > 0x7e {
			return "", fmt.Errorf("non-ASCII byte at %d", i)
		}

		i++
	}

	for _, b := range field[i:] {
		if b != 0 {
			return "", fmt.Errorf("embedded data after NUL at %d", i)
		}
	}

	return string(field[:i]), nil
}

func decodeOffset(field []byte) (int64, error) {
	var n int64

	for _, b := range field {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("non-digit byte %q", b)
		}

		n = n*10 + int64(b-'0')
	}

	return n, nil
}
