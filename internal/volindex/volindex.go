// Package volindex implements the in-memory image of a leases volume's index
// slot (component C3): lookup by lease id, free-slot search, in-memory
// mutation, and the single-block and whole-index flush primitives that
// package leases builds its three-phase protocol on.
//
// An Index is read from storage exactly once, at construction. Nothing in
// this package re-reads storage afterwards - every other host's writes only
// become visible to this process the next time it opens the volume. This
// mirrors the upstream design: the in-memory index is a point-in-time
// mirror, not a live view.
package volindex

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/directio"
	"github.com/calvinalkan/xlease/internal/record"
	"github.com/calvinalkan/xlease/internal/xerrors"
)

// MaxRecords is the fixed number of lease slots an index tracks.
const MaxRecords = 4000

// RecordBase is the byte offset, within the index slot, where the record
// area begins (right after the one-block metadata header).
func RecordBase(blockSize int) int64 {
	return int64(blockSize)
}

// Size returns the logical size of an index slot for the given block size:
// one metadata block plus MaxRecords fixed-width records. This is not
// necessarily a multiple of blockSize - use [PaddedSize] for the buffer
// that is actually read from and written to storage.
func Size(blockSize int) int64 {
	return int64(blockSize) + int64(MaxRecords)*record.Size
}

// PaddedSize returns Size rounded up to the next multiple of blockSize: the
// length of the in-memory buffer backing an Index, and the number of bytes
// [Index.Dump] writes and a caller must read before calling [Load]. Direct
// I/O requires block-aligned transfer lengths (spec.md §4.1), and the index
// slot has trailing padding room up to the much larger enclosing volume
// slot (spec.md §3.2) to absorb the difference - the bytes between Size and
// PaddedSize are never addressed by any record or metadata offset.
func PaddedSize(blockSize int) int64 {
	size := Size(blockSize)
	bs := int64(blockSize)

	if rem := size % bs; rem != 0 {
		size += bs - rem
	}

	return size
}

// SlotSize returns the size of one volume slot for the given block size.
func SlotSize(blockSize int) int64 {
	return 2048 * int64(blockSize)
}

// UserResourceBase returns the volume-absolute offset of user lease slot 0
// (slots 0-2 are the lockspace slot, the index slot, and the lock manager's
// private resource, in that order).
func UserResourceBase(blockSize int) int64 {
	return 3 * SlotSize(blockSize)
}

// UserLeaseOffset returns the volume-absolute offset of the user lease slot
// backing record number i.
func UserLeaseOffset(blockSize int, i int) int64 {
	return UserResourceBase(blockSize) + int64(i)*SlotSize(blockSize)
}

// Index is an in-memory mirror of one leases volume's index slot.
//
// Index is not safe for concurrent use: package leases does not lock it
// either, and leaves serializing access to an open volume to its callers
// (see its doc comment).
type Index struct {
	buf       []byte // aligned, len == PaddedSize(blockSize)
	blockSize int
	meta      record.Metadata
}

// New builds a freshly formatted index: the metadata block carries lockspace
// and the given timestamp with updating=false, and every record is free with
// its offset field set to its own user-lease offset (spec P1).
func New(blockSize int, lockspace string, timestamp int64) (*Index, error) {
	idx := &Index{
		buf:       directio.AlignedBuffer(int(PaddedSize(blockSize)), blockSize),
		blockSize: blockSize,
		meta:      record.Metadata{Lockspace: lockspace, Timestamp: timestamp},
	}

	if err := idx.writeMetadataLocked(); err != nil {
		return nil, err
	}

	for i := range MaxRecords {
		r := record.Record{Offset: UserLeaseOffset(blockSize, i)}
		if err := idx.WriteRecord(i, r); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

// Load parses an existing index slot's raw bytes (exactly
// PaddedSize(blockSize) bytes, as read once from storage by the caller).
// Load does not validate every record eagerly; individual records are
// decoded on demand by [Index.ReadRecord] and [Index.FindRecord] so that
// one corrupt record does not prevent reading the rest of the index.
func Load(buf []byte, blockSize int) (*Index, error) {
	if int64(len(buf)) != PaddedSize(blockSize) {
		return nil, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("volindex: buffer is %d bytes, want %d", len(buf), PaddedSize(blockSize)))
	}

	meta, err := record.DecodeMetadataBlock(buf[:blockSize])
	if err != nil {
		return nil, err
	}

	own := directio.AlignedBuffer(len(buf), blockSize)
	copy(own, buf)

	return &Index{buf: own, blockSize: blockSize, meta: meta}, nil
}

// Metadata returns the index's current metadata block.
func (idx *Index) Metadata() record.Metadata {
	return idx.meta
}

// BlockSize returns the block size the index was built with.
func (idx *Index) BlockSize() int {
	return idx.blockSize
}

func (idx *Index) recordOffset(i int) int64 {
	return RecordBase(idx.blockSize) + int64(i)*record.Size
}

// ReadRecord decodes record number i from the in-memory image.
//
// Possible errors: *xerrors.BaseError (ErrorCodeInvalidInput) if i is out of
// range; *xerrors.RecordError if the bytes at that position do not decode.
func (idx *Index) ReadRecord(i int) (record.Record, error) {
	if i < 0 || i >= MaxRecords {
		return record.Record{}, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("volindex: record number %d out of range [0, %d)", i, MaxRecords))
	}

	off := idx.recordOffset(i)

	return record.Decode(idx.buf[off : off+record.Size])
}

// WriteRecord encodes r into record number i of the in-memory image. This
// mutates only the in-process mirror; it does not touch storage. Callers
// durably persist the mutation via [Index.CopyBlock] (single-block flush)
// or [Index.Dump] (whole-index flush).
func (idx *Index) WriteRecord(i int, r record.Record) error {
	if i < 0 || i >= MaxRecords {
		return xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("volindex: record number %d out of range [0, %d)", i, MaxRecords))
	}

	buf, err := record.Encode(r)
	if err != nil {
		return err
	}

	off := idx.recordOffset(i)
	copy(idx.buf[off:off+record.Size], buf[:])

	return nil
}

// FindRecord scans the record area for a record whose resource equals
// leaseID, returning its record number. It returns (0, false) if no record
// matches.
//
// A match must land exactly on a record boundary (RecordBase + i*RecordSize
// for some i); a lease id that happens to appear as a byte sequence
// straddling two fields, or inside another record's padding, is not a
// match. This alignment check is required - treating any substring match as
// a hit would let a resource name that is a suffix of another field's bytes
// be mistaken for a real record.
func (idx *Index) FindRecord(leaseID string) (int, bool) {
	for i := range MaxRecords {
		r, err := idx.ReadRecord(i)
		if err != nil {
			continue
		}

		if r.Resource == leaseID {
			return i, true
		}
	}

	return 0, false
}

// FindFreeRecord returns the record number of the first free (empty,
// non-updating) record, scanning from 0.
func (idx *Index) FindFreeRecord() (int, bool) {
	for i := range MaxRecords {
		r, err := idx.ReadRecord(i)
		if err != nil {
			continue
		}

		if r.Empty() && !r.Updating {
			return i, true
		}
	}

	return 0, false
}

// Close releases the index's in-memory buffer. It does not touch storage.
func (idx *Index) Close() {
	idx.buf = nil
}
