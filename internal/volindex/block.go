package volindex

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/directio"
	"github.com/calvinalkan/xlease/internal/record"
	"github.com/calvinalkan/xlease/internal/xerrors"
)

// RecordBlock is an aligned copy of a single storage block drawn from an
// Index, along with enough addressing information to mutate it in place and
// flush exactly that block back to storage. It is the vehicle for the
// single-block atomic write that package leases' three-phase protocol
// relies on for crash safety (spec §4.4): mutate the copy, flush it, only
// then update the in-memory Index.
type RecordBlock struct {
	buf            []byte // aligned, len == blockSize
	blockSize      int
	offsetInIndex  int64 // byte offset of this block within the index slot
	firstRecordNum int
	recordsPerBlock int
}

// CopyBlock returns a RecordBlock copy of the storage block containing
// record number i. i is bounds-checked against MaxRecords before any offset
// arithmetic - the source format's reference implementation skipped this
// check, which let a corrupt or out-of-range record number compute a
// block offset outside the index slot.
func (idx *Index) CopyBlock(i int) (*RecordBlock, error) {
	if i < 0 || i >= MaxRecords {
		return nil, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("volindex: record number %d out of range [0, %d)", i, MaxRecords))
	}

	recordsPerBlock := idx.blockSize / record.Size
	blockNum := 1 + i/recordsPerBlock // block 0 is the metadata block
	offsetInIndex := int64(blockNum) * int64(idx.blockSize)

	if offsetInIndex+int64(idx.blockSize) > PaddedSize(idx.blockSize) {
		return nil, xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("volindex: record number %d maps outside the index slot", i))
	}

	buf := directio.AlignedBuffer(idx.blockSize, idx.blockSize)
	copy(buf, idx.buf[offsetInIndex:offsetInIndex+int64(idx.blockSize)])

	return &RecordBlock{
		buf:             buf,
		blockSize:       idx.blockSize,
		offsetInIndex:   offsetInIndex,
		firstRecordNum:  (blockNum - 1) * recordsPerBlock,
		recordsPerBlock: recordsPerBlock,
	}, nil
}

// contains reports whether record number i lives in this block.
func (rb *RecordBlock) contains(i int) bool {
	return i >= rb.firstRecordNum && i < rb.firstRecordNum+rb.recordsPerBlock
}

// WriteRecord encodes r into record number i within this block copy. It
// fails if i does not map into this block - a caller bug, since CopyBlock
// already pinned which block is being mutated.
func (rb *RecordBlock) WriteRecord(i int, r record.Record) error {
	if !rb.contains(i) {
		return xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("volindex: record %d is not in this block (records %d..%d)",
				i, rb.firstRecordNum, rb.firstRecordNum+rb.recordsPerBlock))
	}

	buf, err := record.Encode(r)
	if err != nil {
		return err
	}

	local := int64(i-rb.firstRecordNum) * record.Size
	copy(rb.buf[local:local+record.Size], buf[:])

	return nil
}

// Dump flushes this block to storage at its position within the leases
// volume (indexVolumeBase + the block's offset within the index slot) and
// fsyncs. This is the crash-safe, single-block primitive: either the whole
// block lands, or it doesn't, there is no partial-record torn write within
// it.
func (rb *RecordBlock) Dump(file *directio.File, indexVolumeBase int64) error {
	if err := file.WriteAt(rb.buf, indexVolumeBase+rb.offsetInIndex); err != nil {
		return fmt.Errorf("volindex: flushing block at index offset %d: %w", rb.offsetInIndex, err)
	}

	return file.Sync()
}
