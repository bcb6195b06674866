package leases

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/directio"
	"github.com/calvinalkan/xlease/internal/volindex"
)

// Open opens an already-formatted leases volume at path, reading its index
// slot into memory exactly once. Nothing in this package re-reads storage
// afterwards; concurrent writes by other hosts only become visible the next
// time Open is called.
//
// Possible errors: *xerrors.BaseError (ErrorCodeInvalidInput) for bad
// Options; I/O errors opening path; *xerrors.RecordError if the metadata
// block does not decode (the volume was never formatted, or block size
// does not match what it was formatted with).
func Open(path string, opts Options) (*Volume, error) {
	opts = opts.withDefaults()

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	file, err := directio.OpenExisting(path, opts.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("leases: open %s: %w", path, err)
	}

	indexBase := volindex.SlotSize(opts.BlockSize)

	buf := directio.AlignedBuffer(int(volindex.PaddedSize(opts.BlockSize)), opts.BlockSize)
	if err := file.ReadAt(buf, indexBase); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("leases: reading index of %s: %w", path, err)
	}

	idx, err := volindex.Load(buf, opts.BlockSize)
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

	v.log.Infow("opened leases volume", "path", path, "lockspace", opts.Lockspace)

	return v, nil
}
