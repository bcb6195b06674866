package directio

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

const testBlockSize = 512

func TestFile_WriteAt_ReadAt_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol")

	f, err := Open(path, testBlockSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	want := AlignedBuffer(testBlockSize, testBlockSize)
	for i := range want {
		want[i] = byte(i)
	}

	if err := f.WriteAt(want, testBlockSize*3); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got := AlignedBuffer(testBlockSize, testBlockSize)
	if err := f.ReadAt(got, testBlockSize*3); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFile_WriteAt_RejectsUnalignedOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol")

	f, err := Open(path, testBlockSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := AlignedBuffer(testBlockSize, testBlockSize)

	err = f.WriteAt(buf, 1)
	if !errors.Is(err, ErrUnaligned) {
		t.Fatalf("err = %v, want wrapping ErrUnaligned", err)
	}

	var be *xerrors.BaseError
	if !errors.As(err, &be) || be.Code() != xerrors.ErrorCodeInvalidInput {
		t.Fatalf("expected *xerrors.BaseError with ErrorCodeInvalidInput, got %v", err)
	}
}

func TestFile_WriteAt_RejectsUnalignedLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vol")

	f, err := Open(path, testBlockSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	buf := AlignedBuffer(testBlockSize, testBlockSize)[:testBlockSize-1]

	if err := f.WriteAt(buf, 0); !errors.Is(err, ErrUnaligned) {
		t.Fatalf("err = %v, want wrapping ErrUnaligned", err)
	}
}

func TestAlignedBuffer_IsAligned(t *testing.T) {
	for _, bs := range []int{512, 4096} {
		buf := AlignedBuffer(bs*2, bs)
		if len(buf) != bs*2 {
			t.Fatalf("len = %d, want %d", len(buf), bs*2)
		}

		if !isAligned(buf, bs) {
			t.Fatalf("AlignedBuffer(%d, %d) not aligned", bs*2, bs)
		}
	}
}
