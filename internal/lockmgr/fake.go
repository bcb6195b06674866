package lockmgr

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Fake.LeaseInfo when no resource header has
// been written for the given lease id.
var ErrNotFound = errors.New("lockmgr: resource not found")

// Fake is an in-memory [Manager] for tests. It is safe for concurrent use.
type Fake struct {
	mu        sync.Mutex
	headers   map[ResourceSlot]header
	FailNext  error // if set, the next mutating call returns this error and clears itself
}

type header struct {
	lockspace string
	resource  string
}

// NewFake returns an empty Fake lock manager.
func NewFake() *Fake {
	return &Fake{headers: make(map[ResourceSlot]header)}
}

func (f *Fake) takeFailure() error {
	err := f.FailNext
	f.FailNext = nil

	return err
}

func (f *Fake) WriteResource(_ context.Context, lockspace, resource string, at []ResourceSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeFailure(); err != nil {
		return err
	}

	for _, slot := range at {
		if lockspace == "" && resource == "" {
			delete(f.headers, slot)
			continue
		}

		f.headers[slot] = header{lockspace: lockspace, resource: resource}
	}

	return nil
}

func (f *Fake) ClearResource(_ context.Context, slot ResourceSlot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.takeFailure(); err != nil {
		return err
	}

	delete(f.headers, slot)

	return nil
}

func (f *Fake) LeaseInfo(_ context.Context, lockspace, leaseID string) (Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for slot, h := range f.headers {
		if h.lockspace == lockspace && h.resource == leaseID {
			return Location{Lockspace: lockspace, Resource: leaseID, Path: slot.Path, Offset: slot.Offset}, nil
		}
	}

	return Location{}, ErrNotFound
}

func (f *Fake) ReadResource(_ context.Context, slot ResourceSlot) (string, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, ok := f.headers[slot]
	if !ok {
		return "", "", false, nil
	}

	return h.lockspace, h.resource, true, nil
}

var _ Manager = (*Fake)(nil)
