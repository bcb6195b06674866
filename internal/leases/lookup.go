package leases

import (
	"fmt"

	"github.com/calvinalkan/xlease/internal/volindex"
)

// Lookup resolves leaseID to its location.
//
// Possible errors: ErrClosed; ErrNoSuchLease if no record matches;
// ErrLeaseUpdating if the matching record is mid-mutation.
func (v *Volume) Lookup(leaseID string) (LeaseInfo, error) {
	if err := v.checkOpen(); err != nil {
		return LeaseInfo{}, err
	}

	i, ok := v.idx.FindRecord(leaseID)
	if !ok {
		return LeaseInfo{}, fmt.Errorf("%w: %s", ErrNoSuchLease, leaseID)
	}

	r, err := v.idx.ReadRecord(i)
	if err != nil {
		return LeaseInfo{}, err
	}

	if r.Updating {
		return LeaseInfo{}, fmt.Errorf("%w: %s", ErrLeaseUpdating, leaseID)
	}

	return LeaseInfo{
		Lockspace: v.lockspace,
		Resource:  leaseID,
		Path:      v.path,
		Offset:    v.userLeaseOffset(i),
	}, nil
}

// List returns every occupied record's location, in record-number order.
// Unlike Lookup, it does not reject records that are mid-update - the
// Updating field on each entry reports that instead, the way spec §4.4
// describes list's contract.
func (v *Volume) List() ([]LeaseInfo, error) {
	if err := v.checkOpen(); err != nil {
		return nil, err
	}

	var out []LeaseInfo

	for i := range volindex.MaxRecords {
		r, err := v.idx.ReadRecord(i)
		if err != nil {
			return nil, err
		}

		if r.Empty() {
			continue
		}

		out = append(out, LeaseInfo{
			Lockspace: v.lockspace,
			Resource:  r.Resource,
			Path:      v.path,
			Offset:    v.userLeaseOffset(i),
			Updating:  r.Updating,
		})
	}

	return out, nil
}
