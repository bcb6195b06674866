package leases

import "errors"

var (
	// ErrNoSuchLease is returned by Lookup and Remove when no record
	// matches the given lease id.
	ErrNoSuchLease = errors.New("leases: no such lease")

	// ErrLeaseExists is returned by Add when a non-updating record
	// already claims the given lease id.
	ErrLeaseExists = errors.New("leases: lease already exists")

	// ErrLeaseUpdating is returned when an operation finds the relevant
	// record mid-mutation. The caller may retry later or invoke Rebuild.
	ErrLeaseUpdating = errors.New("leases: lease is mid-update")

	// ErrNoSpace is returned by Add when every record is occupied or
	// mid-update.
	ErrNoSpace = errors.New("leases: no free record")

	// ErrClosed is returned by any operation on a Volume after Close.
	ErrClosed = errors.New("leases: volume is closed")
)
