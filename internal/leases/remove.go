package leases

import (
	"context"
	"fmt"

	"github.com/calvinalkan/xlease/internal/lockmgr"
	"github.com/calvinalkan/xlease/internal/record"
)

// Remove releases the record for leaseID, following the mirror image of
// Add's three-phase protocol:
//
//  1. mark the record updating=true (single-block flush);
//  2. ask the external lock manager to clear the resource header at the
//     lease's slot;
//  3. rewrite the record free (single-block flush).
//
// Possible errors: ErrClosed; ErrNoSuchLease if no record matches leaseID;
// ErrLeaseUpdating if the record is already mid-update (the caller must
// resolve that first, typically via Rebuild); otherwise I/O errors or the
// lock manager's error.
func (v *Volume) Remove(ctx context.Context, leaseID string) error {
	if err := v.checkOpen(); err != nil {
		return err
	}

	i, ok := v.idx.FindRecord(leaseID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchLease, leaseID)
	}

	r, err := v.idx.ReadRecord(i)
	if err != nil {
		return err
	}

	if r.Updating {
		return fmt.Errorf("%w: %s", ErrLeaseUpdating, leaseID)
	}

	offset := v.userLeaseOffset(i)

	if err := v.flushRecord(i, record.Record{Resource: leaseID, Offset: offset, Updating: true}); err != nil {
		return fmt.Errorf("leases: remove %s: phase 1 (mark updating): %w", leaseID, err)
	}

	v.log.Infow("remove: phase 1 committed", "lease_id", leaseID, "record", i)

	slot := lockmgr.ResourceSlot{Path: v.path, Offset: offset}
	if err := v.mgr.ClearResource(ctx, slot); err != nil {
		v.log.Warnw("remove: phase 2 (lock manager) failed, record left updating",
			"lease_id", leaseID, "record", i, "error", err)

		return fmt.Errorf("leases: remove %s: phase 2 (lock manager clear): %w", leaseID, err)
	}

	v.log.Infow("remove: phase 2 committed", "lease_id", leaseID, "record", i)

	if err := v.flushRecord(i, record.Record{Offset: offset}); err != nil {
		return fmt.Errorf("leases: remove %s: phase 3 (finalise): %w", leaseID, err)
	}

	v.log.Infow("remove: phase 3 committed", "lease_id", leaseID, "record", i)

	return nil
}
