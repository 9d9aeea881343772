package registry

import "errors"

// Registry errors.
var (
	// ErrInvalidArgument reports a nil, out-of-range or otherwise malformed
	// input, such as a non-unicast address where unicast is required.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports an unknown index, UUID, address or model.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists reports a duplicate explicit key index or node name.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStoreFull reports a table or partition with no free slot.
	ErrStoreFull = errors.New("store full")

	// ErrBindingsFull reports a model with no free binding slot.
	ErrBindingsFull = errors.New("model binding slots full")

	// ErrNoIndexAvailable reports exhaustion of the 0x000-0xFFF index space.
	ErrNoIndexAvailable = errors.New("no key index available")

	// ErrDerivation reports a failure of the key derivation or randomness
	// collaborator.
	ErrDerivation = errors.New("key derivation failed")

	// ErrFastProvDisabled reports use of the fast-provisioning override
	// while the subsystem is not enabled.
	ErrFastProvDisabled = errors.New("fast provisioning disabled")

	// ErrInternal reports an invariant violation, such as a cascade step
	// failing after its existence checks passed.
	ErrInternal = errors.New("internal invariant violation")
)
