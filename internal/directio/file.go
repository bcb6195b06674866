// Package directio opens files for unbuffered, block-aligned I/O (component
// C1). It wraps O_DIRECT so that reads and writes bypass the kernel page
// cache: every record flush in package leases must reach storage (or the
// failure must be observable) without a stale cache entry masking it.
package directio

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"github.com/calvinalkan/xlease/internal/xerrors"
)

// ErrUnaligned is returned when a caller passes a buffer, offset, or length
// that is not a multiple of the file's block size. It maps to spec's
// InvalidParameter error kind.
var ErrUnaligned = errors.New("directio: buffer, offset, or length not block-aligned")

// File is an open direct-I/O file descriptor.
//
// File is not safe for concurrent use by multiple goroutines: callers in
// this module serialize access to a given leases volume themselves (see
// package leases doc comments).
type File struct {
	f         *os.File
	blockSize int
}

// Open opens path for unbuffered read/write I/O with the given block size
// (512 or 4096). The file is created if it does not exist.
//
// Possible errors: any *os.PathError from the underlying open(2) call.
func Open(path string, blockSize int) (*File, error) {
	f, err := os.OpenFile(path, syscall.O_DIRECT|os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("directio: open %s: %w", path, err)
	}

	return &File{f: f, blockSize: blockSize}, nil
}

// OpenExisting opens an already-formatted volume; it fails if path does not
// exist rather than creating it.
func OpenExisting(path string, blockSize int) (*File, error) {
	f, err := os.OpenFile(path, syscall.O_DIRECT|os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("directio: open %s: %w", path, err)
	}

	return &File{f: f, blockSize: blockSize}, nil
}

// BlockSize returns the block size File was opened with.
func (f *File) BlockSize() int {
	return f.blockSize
}

// Fd returns the underlying OS file descriptor, usable with syscalls such
// as [syscall.Flock].
func (f *File) Fd() uintptr {
	return f.f.Fd()
}

// ReadAt reads exactly len(buf) bytes starting at off into buf. Both off and
// len(buf), and buf's memory alignment, must be multiples of the file's
// block size; otherwise ReadAt fails with ErrUnaligned without touching the
// file.
func (f *File) ReadAt(buf []byte, off int64) error {
	if err := f.checkAligned(buf, off); err != nil {
		return err
	}

	n, err := retryEINTR(func() (int, error) {
		return syscall.Pread(int(f.f.Fd()), buf, off)
	})
	if err != nil {
		return fmt.Errorf("directio: pread at %d: %w", off, err)
	}

	if n != len(buf) {
		return fmt.Errorf("directio: short read at %d: got %d bytes, want %d", off, n, len(buf))
	}

	return nil
}

// WriteAt writes all of buf to the file starting at off. Both off and
// len(buf), and buf's memory alignment, must be multiples of the file's
// block size; otherwise WriteAt fails with ErrUnaligned without touching the
// file.
func (f *File) WriteAt(buf []byte, off int64) error {
	if err := f.checkAligned(buf, off); err != nil {
		return err
	}

	n, err := retryEINTR(func() (int, error) {
		return syscall.Pwrite(int(f.f.Fd()), buf, off)
	})
	if err != nil {
		return fmt.Errorf("directio: pwrite at %d: %w", off, err)
	}

	if n != len(buf) {
		return fmt.Errorf("directio: short write at %d: wrote %d bytes, want %d", off, n, len(buf))
	}

	return nil
}

// Sync commits the file's contents to stable storage.
func (f *File) Sync() error {
	return f.f.Sync()
}

// Close closes the underlying file descriptor.
func (f *File) Close() error {
	return f.f.Close()
}

func (f *File) checkAligned(buf []byte, off int64) error {
	bs := int64(f.blockSize)

	if off%bs != 0 || int64(len(buf))%bs != 0 || !isAligned(buf, f.blockSize) {
		return xerrors.NewBaseError(ErrUnaligned, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("directio: offset=%d len=%d block_size=%d", off, len(buf), f.blockSize))
	}

	return nil
}

func isAligned(buf []byte, blockSize int) bool {
	if len(buf) == 0 {
		return true
	}

	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(blockSize) == 0
}

// AlignedBuffer allocates a zero-filled buffer of size bytes whose first
// byte is aligned to blockSize, suitable for use with [File.ReadAt] and
// [File.WriteAt]. size must already be a multiple of blockSize.
func AlignedBuffer(size, blockSize int) []byte {
	raw := make([]byte, size+blockSize)

	off := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(blockSize))
	if off != 0 {
		off = blockSize - off
	}

	return raw[off : off+size]
}

// retryEINTR runs op, retrying while it fails with EINTR. Every blocking
// Unix syscall can be interrupted by a signal before completing; EINTR means
// "try again", not "failed".
func retryEINTR(op func() (int, error)) (int, error) {
	const maxEINTRRetries = 10000

	var (
		n   int
		err error
	)

	for range maxEINTRRetries {
		n, err = op()
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return n, err
		}
	}

	return n, err
}
