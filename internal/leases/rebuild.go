package leases

import (
	"context"
	"fmt"
	"time"

	"github.com/calvinalkan/xlease/internal/lockmgr"
	"github.com/calvinalkan/xlease/internal/record"
	"github.com/calvinalkan/xlease/internal/volindex"
)

// Rebuild regenerates the volume's entire index from ground truth: for
// every record number, it asks the external lock manager what resource (if
// any) actually occupies that record's user lease slot, and writes a fresh
// index reflecting exactly that. It ignores whatever the on-disk index
// currently says, including any record stuck in updating=true.
//
// Rebuild must only be invoked when no host is actively using the volume
// for Add/Remove/Lookup traffic - Rebuild cannot detect or prevent that
// (spec §6.5). It does, however, serialize against concurrent Format/Rebuild
// calls on the same path via an flock(2)-based lock file (package fs's
// Locker) held only for the duration of the rewrite.
//
// The whole-index rewrite is bracketed by the metadata block's updating
// flag the same way Format's is: a crash mid-rebuild leaves a durable
// signal for a subsequent rebuild to pick up from, rather than silently
// exposing a half-rebuilt index.
func (v *Volume) Rebuild(ctx context.Context) error {
	if err := v.checkOpen(); err != nil {
		return err
	}

	lock, err := locker.LockWithTimeout(lockPath(v.path), formatRebuildLockTimeout)
	if err != nil {
		return fmt.Errorf("leases: rebuild: acquiring exclusivity lock: %w", err)
	}
	defer lock.Close()

	fresh, err := volindex.New(v.blockSize, v.lockspace, time.Now().Unix())
	if err != nil {
		return err
	}

	for i := range volindex.MaxRecords {
		offset := v.userLeaseOffset(i)

		lockspace, resource, found, err := v.mgr.ReadResource(ctx, lockmgr.ResourceSlot{Path: v.path, Offset: offset})
		if err != nil {
			return fmt.Errorf("leases: rebuild: reading resource at record %d: %w", i, err)
		}

		r := record.Record{Offset: offset}
		if found && lockspace == v.lockspace {
			r.Resource = resource
		}

		if err := fresh.WriteRecord(i, r); err != nil {
			return err
		}
	}

	if err := fresh.SetUpdating(true); err != nil {
		return err
	}

	if err := fresh.Dump(v.file, v.indexVolumeBase()); err != nil {
		return fmt.Errorf("leases: rebuild: writing fresh index: %w", err)
	}

	if err := fresh.SetUpdating(false); err != nil {
		return err
	}

	if err := fresh.DumpMetadataBlock(v.file, v.indexVolumeBase()); err != nil {
		return fmt.Errorf("leases: rebuild: finalising metadata: %w", err)
	}

	v.idx.Close()
	v.idx = fresh

	v.log.Infow("rebuilt leases volume", "path", v.path, "lockspace", v.lockspace)

	return nil
}
