// Package lockmgr declares the external cluster lock manager interface that
// package leases consumes (spec §6.2). The lock manager owns the actual
// mutual exclusion (a paxos-like protocol over the lockspace slot); this
// module only writes and reads the small "resource header" it stores at a
// given (path, offset) on the caller's behalf. No concrete implementation
// ships here - only the interface, a location type, and a test fake.
package lockmgr

import "context"

// ResourceSlot identifies one (path, offset) location the lock manager
// manages a resource header for - normally a user lease slot's volume
// offset.
type ResourceSlot struct {
	Path   string
	Offset int64
}

// Location is what [Manager.LeaseInfo] returns: everything a caller needs
// to ask the lock manager to acquire or release the lease.
type Location struct {
	Lockspace string
	Resource  string
	Path      string
	Offset    int64
}

// Manager is the capability package leases requires from the external
// cluster lock manager. A production implementation talks to sanlock (or an
// equivalent paxos-based lock daemon) over its control socket; this module
// only defines the shape of that conversation.
type Manager interface {
	// WriteResource durably writes a resource header for (lockspace,
	// resource) at every slot in at. This is the add operation's phase 2
	// commit point (spec §4.4) - once it returns nil, the lease is
	// committed cluster-wide even if this host crashes immediately after.
	WriteResource(ctx context.Context, lockspace, resource string, at []ResourceSlot) error

	// ClearResource writes an empty resource header at slot, releasing
	// whatever lease previously occupied it. This is remove's phase 2.
	ClearResource(ctx context.Context, slot ResourceSlot) error

	// LeaseInfo resolves a lease id to its cluster-wide location, if the
	// lock manager's own bookkeeping (independent of this module's index)
	// knows about it.
	LeaseInfo(ctx context.Context, lockspace, leaseID string) (Location, error)

	// ReadResource inspects whatever resource header (if any) the lock
	// manager has written at slot, without going through this module's
	// index at all. Rebuild uses this to regenerate the index from ground
	// truth: the lock manager's on-disk resource headers, not the
	// possibly-stale index.
	ReadResource(ctx context.Context, slot ResourceSlot) (lockspace, resource string, found bool, err error)
}
