package leases

import (
	"context"
	"fmt"

	"github.com/calvinalkan/xlease/internal/lockmgr"
	"github.com/calvinalkan/xlease/internal/record"
)

// Add allocates a free record for leaseID and durably commits it, following
// the three-phase protocol (spec §4.4):
//
//  1. mark a free record updating=true (single-block flush), then update
//     the in-memory index;
//  2. ask the external lock manager to write the resource header - this is
//     the durable, cross-host commit point;
//  3. rewrite the record updating=false (single-block flush) and update the
//     in-memory index.
//
// A failure in phase 1 or 3 leaves the on-disk record in its previous state
// or in updating=true; Add returns the I/O error. A failure in phase 2
// leaves the record updating=true and returns the lock manager's error
// unchanged - the caller may retry Add for a different id (the failed slot
// stays reserved until Rebuild clears it) or run Rebuild to reconcile.
//
// Possible errors: ErrClosed; ErrLeaseExists if leaseID already has a
// committed record; ErrLeaseUpdating if it has one mid-update;
// ErrNoSpace if every record is occupied or mid-update; otherwise I/O
// errors or the lock manager's error.
func (v *Volume) Add(ctx context.Context, leaseID string) (LeaseInfo, error) {
	if err := v.checkOpen(); err != nil {
		return LeaseInfo{}, err
	}

	if i, ok := v.idx.FindRecord(leaseID); ok {
		r, err := v.idx.ReadRecord(i)
		if err != nil {
			return LeaseInfo{}, err
		}

		if r.Updating {
			return LeaseInfo{}, fmt.Errorf("%w: %s", ErrLeaseUpdating, leaseID)
		}

		return LeaseInfo{}, fmt.Errorf("%w: %s", ErrLeaseExists, leaseID)
	}

	i, ok := v.idx.FindFreeRecord()
	if !ok {
		return LeaseInfo{}, fmt.Errorf("%w: %s", ErrNoSpace, leaseID)
	}

	offset := v.userLeaseOffset(i)

	if err := v.flushRecord(i, record.Record{Resource: leaseID, Offset: offset, Updating: true}); err != nil {
		return LeaseInfo{}, fmt.Errorf("leases: add %s: phase 1 (mark updating): %w", leaseID, err)
	}

	v.log.Infow("add: phase 1 committed", "lease_id", leaseID, "record", i)

	slot := lockmgr.ResourceSlot{Path: v.path, Offset: offset}
	if err := v.mgr.WriteResource(ctx, v.lockspace, leaseID, []lockmgr.ResourceSlot{slot}); err != nil {
		v.log.Warnw("add: phase 2 (lock manager) failed, record left updating",
			"lease_id", leaseID, "record", i, "error", err)

		return LeaseInfo{}, fmt.Errorf("leases: add %s: phase 2 (lock manager commit): %w", leaseID, err)
	}

	v.log.Infow("add: phase 2 committed", "lease_id", leaseID, "record", i)

	if err := v.flushRecord(i, record.Record{Resource: leaseID, Offset: offset, Updating: false}); err != nil {
		return LeaseInfo{}, fmt.Errorf("leases: add %s: phase 3 (finalise): %w", leaseID, err)
	}

	v.log.Infow("add: phase 3 committed", "lease_id", leaseID, "record", i)

	return LeaseInfo{Lockspace: v.lockspace, Resource: leaseID, Path: v.path, Offset: offset}, nil
}

// flushRecord performs the single-block atomic write common to every phase
// transition: copy the block containing record i, mutate the copy, flush
// it, then update the in-memory index to match. The in-memory update only
// happens after the flush succeeds, so a failed flush never leaves the
// in-memory mirror ahead of storage.
func (v *Volume) flushRecord(i int, r record.Record) error {
	rb, err := v.idx.CopyBlock(i)
	if err != nil {
		return err
	}

	if err := rb.WriteRecord(i, r); err != nil {
		return err
	}

	if err := rb.Dump(v.file, v.indexVolumeBase()); err != nil {
		return err
	}

	return v.idx.WriteRecord(i, r)
}
