package volindex

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/directio"
	"github.com/calvinalkan/xlease/internal/record"
)

// writeMetadataLocked re-renders idx.meta into the metadata block of the
// in-memory buffer. Callers must hold no lock (Index has none - see package
// doc); the name matches the teacher's convention of suffixing mutators that
// assume exclusive access to idx.buf.
func (idx *Index) writeMetadataLocked() error {
	buf, err := record.EncodeMetadataBlock(idx.meta, idx.blockSize)
	if err != nil {
		return err
	}

	copy(idx.buf[:idx.blockSize], buf)

	return nil
}

// SetUpdating flips the metadata block's updating flag in memory. Package
// leases uses this around whole-index rewrites (format, rebuild) so a crash
// mid-rewrite leaves a durable signal once the metadata block itself is
// flushed.
func (idx *Index) SetUpdating(updating bool) error {
	idx.meta.Updating = updating
	return idx.writeMetadataLocked()
}

// DumpMetadataBlock writes only the first blockSize bytes of the in-memory
// index (the metadata block) to storage and fsyncs. Cheaper than [Index.Dump]
// when only the metadata block (e.g. its updating flag) changed.
func (idx *Index) DumpMetadataBlock(file *directio.File, indexVolumeBase int64) error {
	if err := file.WriteAt(idx.buf[:idx.blockSize], indexVolumeBase); err != nil {
		return fmt.Errorf("volindex: dumping metadata block: %w", err)
	}

	return file.Sync()
}

// Dump writes the entire in-memory index buffer to storage at
// indexVolumeBase and fsyncs the file descriptor.
//
// This is NOT atomic: a crash partway through can leave the index
// partially written, mixing old and new records. It exists only for
// format and rebuild, which both bracket it with the metadata block's
// updating flag so a partial Dump is recoverable (see package leases).
func (idx *Index) Dump(file *directio.File, indexVolumeBase int64) error {
	if err := file.WriteAt(idx.buf, indexVolumeBase); err != nil {
		return fmt.Errorf("volindex: dumping index: %w", err)
	}

	return file.Sync()
}
