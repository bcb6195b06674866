package volindex

import (
	"errors"
	"testing"

	"github.com/calvinalkan/xlease/internal/record"
	"github.com/calvinalkan/xlease/internal/xerrors"
)

const testBlockSize = 512

// TestNew_FormattedIndexSatisfiesP1 checks spec property P1: every record
// of a freshly formatted index is empty, its offset is its own user lease
// offset, and it is not mid-update.
func TestNew_FormattedIndexSatisfiesP1(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 1700000000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := range MaxRecords {
		r, err := idx.ReadRecord(i)
		if err != nil {
			t.Fatalf("ReadRecord(%d): %v", i, err)
		}

		if !r.Empty() {
			t.Fatalf("record %d: resource = %q, want empty", i, r.Resource)
		}

		if want := UserLeaseOffset(testBlockSize, i); r.Offset != want {
			t.Fatalf("record %d: offset = %d, want %d", i, r.Offset, want)
		}

		if r.Updating {
			t.Fatalf("record %d: updating = true, want false", i)
		}
	}
}

func TestWriteRecord_ThenFindRecord(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const leaseID = "ab49ea5d-3745-4c53-8e95-000000000001"

	if err := idx.WriteRecord(7, record.Record{Resource: leaseID, Offset: UserLeaseOffset(testBlockSize, 7)}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	got, ok := idx.FindRecord(leaseID)
	if !ok {
		t.Fatalf("FindRecord(%q) = not found, want record 7", leaseID)
	}

	if got != 7 {
		t.Fatalf("FindRecord(%q) = %d, want 7", leaseID, got)
	}
}

// TestFindRecord_RejectsMisalignedMatch is the regression test for the
// fixed "TODO: check alignment" bug: a lease id that is only present as a
// byte sequence straddling record boundaries must never be reported as a
// match. Because FindRecord only ever decodes whole records at their fixed
// positions (never a raw substring search), such a straddling sequence is
// structurally unreachable as a hit.
func TestFindRecord_RejectsMisalignedMatch(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Craft a resource whose suffix, if read starting one byte later than
	// its real start, would itself look like a plausible lease id.
	tricky := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAB"[:48]

	if err := idx.WriteRecord(3, record.Record{Resource: tricky, Offset: UserLeaseOffset(testBlockSize, 3)}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	if _, ok := idx.FindRecord(tricky[1:]); ok {
		t.Fatalf("FindRecord matched a byte sequence offset by one from the real record start")
	}
}

func TestFindFreeRecord_SkipsOccupiedAndUpdating(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := idx.WriteRecord(0, record.Record{Resource: "r0", Offset: UserLeaseOffset(testBlockSize, 0)}); err != nil {
		t.Fatalf("WriteRecord(0): %v", err)
	}

	if err := idx.WriteRecord(1, record.Record{Offset: UserLeaseOffset(testBlockSize, 1), Updating: true}); err != nil {
		t.Fatalf("WriteRecord(1): %v", err)
	}

	got, ok := idx.FindFreeRecord()
	if !ok {
		t.Fatalf("FindFreeRecord: not found")
	}

	if got != 2 {
		t.Fatalf("FindFreeRecord = %d, want 2", got)
	}
}

func TestCopyBlock_RejectsOutOfRangeRecordNumber(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, bad := range []int{-1, MaxRecords, MaxRecords + 1000} {
		_, err := idx.CopyBlock(bad)

		var be *xerrors.BaseError
		if !errors.As(err, &be) || be.Code() != xerrors.ErrorCodeInvalidInput {
			t.Fatalf("CopyBlock(%d) err = %v, want *xerrors.BaseError(ErrorCodeInvalidInput)", bad, err)
		}
	}
}

func TestCopyBlock_WriteRecord_DoesNotMutateSourceIndex(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rb, err := idx.CopyBlock(5)
	if err != nil {
		t.Fatalf("CopyBlock: %v", err)
	}

	if err := rb.WriteRecord(5, record.Record{Resource: "r5", Offset: UserLeaseOffset(testBlockSize, 5), Updating: true}); err != nil {
		t.Fatalf("RecordBlock.WriteRecord: %v", err)
	}

	// The copy changed, but idx's own in-memory mirror did not - callers
	// must explicitly call idx.WriteRecord to update it.
	r, err := idx.ReadRecord(5)
	if err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}

	if !r.Empty() {
		t.Fatalf("idx.ReadRecord(5) = %+v, want still empty (copy must not alias source)", r)
	}
}

func TestCopyBlock_WriteRecord_RejectsRecordOutsideBlock(t *testing.T) {
	idx, err := New(testBlockSize, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recordsPerBlock := testBlockSize / record.Size

	rb, err := idx.CopyBlock(0)
	if err != nil {
		t.Fatalf("CopyBlock: %v", err)
	}

	err = rb.WriteRecord(recordsPerBlock, record.Record{Offset: UserLeaseOffset(testBlockSize, recordsPerBlock)})

	var be *xerrors.BaseError
	if !errors.As(err, &be) || be.Code() != xerrors.ErrorCodeInvalidInput {
		t.Fatalf("err = %v, want *xerrors.BaseError(ErrorCodeInvalidInput)", err)
	}
}

// TestCopyBlock_FirstRecordNumMatchesPhysicalBlock is the regression test
// for the off-by-one-block bug: the first record number CopyBlock reports
// for a block must be the first record actually stored in that block's
// bytes, not one block's worth too high.
func TestCopyBlock_FirstRecordNumMatchesPhysicalBlock(t *testing.T) {
	for _, bs := range []int{512, 4096} {
		idx, err := New(bs, "LS", 0)
		if err != nil {
			t.Fatalf("New(%d): %v", bs, err)
		}

		recordsPerBlock := bs / record.Size

		for _, i := range []int{0, recordsPerBlock, recordsPerBlock + 3, MaxRecords - 1} {
			rb, err := idx.CopyBlock(i)
			if err != nil {
				t.Fatalf("CopyBlock(%d) blockSize=%d: %v", i, bs, err)
			}

			wantFirst := (i / recordsPerBlock) * recordsPerBlock
			if rb.firstRecordNum != wantFirst {
				t.Fatalf("CopyBlock(%d) blockSize=%d: firstRecordNum = %d, want %d",
					i, bs, rb.firstRecordNum, wantFirst)
			}

			if !rb.contains(i) {
				t.Fatalf("CopyBlock(%d) blockSize=%d: contains(%d) = false, want true", i, bs, i)
			}

			if err := rb.WriteRecord(i, record.Record{Offset: UserLeaseOffset(bs, i)}); err != nil {
				t.Fatalf("CopyBlock(%d) blockSize=%d: WriteRecord(%d): %v", i, bs, i, err)
			}
		}
	}
}

// TestPaddedSize_IsBlockAligned is the regression test for Dump's alignment
// bug at blockSize=4096: Size(4096) is not itself a multiple of 4096, so the
// buffer Dump writes must be rounded up by PaddedSize, or every whole-index
// write on a 4096-byte-sector volume fails with ErrUnaligned.
func TestPaddedSize_IsBlockAligned(t *testing.T) {
	for _, bs := range []int{512, 4096} {
		padded := PaddedSize(bs)

		if padded%int64(bs) != 0 {
			t.Fatalf("PaddedSize(%d) = %d, not a multiple of %d", bs, padded, bs)
		}

		if padded < Size(bs) {
			t.Fatalf("PaddedSize(%d) = %d, smaller than Size = %d", bs, padded, Size(bs))
		}
	}
}

// TestCopyBlock_LastRecord_BlockSize4096 exercises the last valid record at
// a block size where Size(blockSize) is not block-aligned: before the fix,
// CopyBlock's bounds check compared against the unaligned Size instead of
// PaddedSize and rejected this in-range record number.
func TestCopyBlock_LastRecord_BlockSize4096(t *testing.T) {
	const bs = 4096

	idx, err := New(bs, "LS", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := idx.CopyBlock(MaxRecords - 1); err != nil {
		t.Fatalf("CopyBlock(%d): %v", MaxRecords-1, err)
	}
}

func TestLoad_RejectsWrongSize(t *testing.T) {
	_, err := Load(make([]byte, 10), testBlockSize)

	var be *xerrors.BaseError
	if !errors.As(err, &be) || be.Code() != xerrors.ErrorCodeInvalidInput {
		t.Fatalf("err = %v, want *xerrors.BaseError(ErrorCodeInvalidInput)", err)
	}
}
