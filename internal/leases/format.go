package leases

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/directio"
	"github.com/calvinalkan/xlease/internal/volindex"
	"github.com/calvinalkan/xlease/internal/xerrors"
)

// Format creates (or truncates the index slot of) a leases volume at path
// and writes a fresh index: every record free, offset fields set to their
// own user lease offset (spec P1).
//
// The whole-index write is bracketed by the metadata block's updating flag:
// Format sets updating=true, writes the index, then rewrites just the
// metadata block with updating=false and flushes it. Format's own write is
// not atomic (spec §4.3's Dump never is), but a crash during it leaves a
// durable updating=true signal a subsequent Rebuild can recognize and
// recover from, instead of silently exposing a half-written index.
//
// Possible errors: *xerrors.BaseError (ErrorCodeInvalidInput) if opts is
// missing a Manager or BlockSize is not 512/4096; otherwise I/O errors from
// opening or writing path.
func Format(path string, timestamp int64, opts Options) (*Volume, error) {
	opts = opts.withDefaults()

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	lock, err := locker.LockWithTimeout(lockPath(path), formatRebuildLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("leases: format %s: acquiring exclusivity lock: %w", path, err)
	}
	defer lock.Close()

	file, err := directio.Open(path, opts.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("leases: format %s: %w", path, err)
	}

	idx, err := volindex.New(opts.BlockSize, opts.Lockspace, timestamp)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	v := &Volume{
		path:      path,
		blockSize: opts.BlockSize,
		lockspace: opts.Lockspace,
		file:      file,
		idx:       idx,
		mgr:       opts.Manager,
		log:       opts.Logger,
	}

	if err := idx.SetUpdating(true); err != nil {
		_ = file.Close()
		return nil, err
	}

	if err := idx.Dump(file, v.indexVolumeBase()); err != nil {
		_ = file.Close()
		return nil, err
	}

	if err := idx.SetUpdating(false); err != nil {
		_ = file.Close()
		return nil, err
	}

	// Flushing the metadata block alone (the first blockSize bytes) is
	// sufficient and cheaper than a second whole-index Dump.
	if err := dumpMetadataBlock(file, idx, v.indexVolumeBase()); err != nil {
		_ = file.Close()
		return nil, err
	}

	v.log.Infow("formatted leases volume", "path", path, "lockspace", opts.Lockspace, "block_size", opts.BlockSize)

	return v, nil
}

func validateOptions(opts Options) error {
	if opts.BlockSize != 512 && opts.BlockSize != 4096 {
		return xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput,
			fmt.Sprintf("leases: block size must be 512 or 4096, got %d", opts.BlockSize))
	}

	if opts.Manager == nil {
		return xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput, "leases: Options.Manager is required")
	}

	if opts.Lockspace == "" {
		return xerrors.NewBaseError(nil, xerrors.ErrorCodeInvalidInput, "leases: Options.Lockspace is required")
	}

	return nil
}

func dumpMetadataBlock(file *directio.File, idx *volindex.Index, indexVolumeBase int64) error {
	return idx.DumpMetadataBlock(file, indexVolumeBase)
}
