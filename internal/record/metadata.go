package record

import (
	"encoding/binary"
	"fmt"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

// Magic is the xlease index slot's metadata block magic number, stored as a
// little-endian uint32 at offset 0 of the block. The value is preserved
// byte-exact from the original implementation for on-disk compatibility.
const Magic uint32 = 0x12152016

// Version is the 4-byte ASCII format tag written into every metadata block
// this package produces ("xlsf" = xlease slot format).
const Version = "xlsf"

const (
	lockspaceWidth = 48
	timestampWidth = 10

	metaOffMagic     = 0
	metaOffVersion   = metaOffMagic + 4
	metaOffLockspace = metaOffVersion + 4
	metaOffTimestamp = metaOffLockspace + lockspaceWidth
	metaOffUpdating  = metaOffTimestamp + timestampWidth
	metaHeaderSize   = metaOffUpdating + 1
)

// Metadata is the decoded form of an index slot's metadata block.
type Metadata struct {
	// Lockspace is the cluster lock manager's lockspace id this volume
	// belongs to.
	Lockspace string
	// Timestamp is a decimal Unix timestamp recording when the metadata
	// block was last written (by format or rebuild).
	Timestamp int64
	// Updating is true while the index as a whole is being rewritten
	// (set during format/rebuild, cleared once the writer fsyncs the
	// completed index).
	Updating bool
}

// EncodeMetadataBlock renders m as a BLOCK_SIZE-byte metadata block. blockSize
// must be at least metaHeaderSize (512 and 4096, the two block sizes this
// format supports, both qualify).
func EncodeMetadataBlock(m Metadata, blockSize int) ([]byte, error) {
	if blockSize < metaHeaderSize {
		return nil, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("record: block size %d too small for metadata header (need %d)", blockSize, metaHeaderSize))
	}

	if len(m.Lockspace) > lockspaceWidth {
		return nil, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("record: lockspace too long: %d bytes (max %d)", len(m.Lockspace), lockspaceWidth))
	}

	if m.Timestamp < 0 || m.Timestamp > 9999999999 {
		return nil, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("record: timestamp %d does not fit in %d decimal digits", m.Timestamp, timestampWidth))
	}

	buf := make([]byte, blockSize)

	binary.LittleEndian.PutUint32(buf[metaOffMagic:], Magic)
	copy(buf[metaOffVersion:], Version)
	copy(buf[metaOffLockspace:metaOffLockspace+lockspaceWidth], m.Lockspace)
	copy(buf[metaOffTimestamp:metaOffTimestamp+timestampWidth], fmt.Sprintf("%0*d", timestampWidth, m.Timestamp))

	if m.Updating {
		buf[metaOffUpdating] = updatingByte
	} else {
		buf[metaOffUpdating] = notUpdatingByte
	}

	return buf, nil
}

// DecodeMetadataBlock parses the first metaHeaderSize bytes of buf. buf must
// be at least metaHeaderSize bytes (a full BLOCK_SIZE buffer is the normal
// caller, but only the header prefix is inspected).
//
// Possible errors: *xerrors.RecordError with reason ReasonCannotUnpack (short
// buffer, bad magic, bad version tag, or bad updating byte),
// ReasonCannotDecodeResource (lockspace field), or ReasonCannotParseOffset
// (timestamp field).
func DecodeMetadataBlock(buf []byte) (Metadata, error) {
	if len(buf) < metaHeaderSize {
		return Metadata{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, padTo64(buf)).
			WithDetail("length", len(buf))
	}

	if binary.LittleEndian.Uint32(buf[metaOffMagic:]) != Magic {
		return Metadata{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, padTo64(buf)).
			WithDetail("reason", "bad magic")
	}

	if string(buf[metaOffVersion:metaOffVersion+4]) != Version {
		return Metadata{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, padTo64(buf)).
			WithDetail("reason", "bad version")
	}

	lockspace, err := decodeResource(buf[metaOffLockspace : metaOffLockspace+lockspaceWidth])
	if err != nil {
		return Metadata{}, xerrors.NewRecordError(xerrors.ReasonCannotDecodeResource, padTo64(buf))
	}

	ts, err := decodeOffset(buf[metaOffTimestamp : metaOffTimestamp+timestampWidth])
	if err != nil {
		return Metadata{}, xerrors.NewRecordError(xerrors.ReasonCannotParseOffset, padTo64(buf))
	}

	var updating bool

	switch buf[metaOffUpdating] {
	case updatingByte:
		updating = true
	case notUpdatingByte:
		updating = false
	default:
		return Metadata{}, xerrors.NewRecordError(xerrors.ReasonCannotUnpack, padTo64(buf))
	}

	return Metadata{Lockspace: lockspace, Timestamp: ts, Updating: updating}, nil
}

// padTo64 truncates or zero-pads buf to 64 bytes so it can ride along inside
// a *xerrors.RecordError, which always carries a fixed-size sample.
func padTo64(buf []byte) []byte {
	out := make([]byte, Size)
	n := copy(out, buf)

	_ = n

	return out
}
