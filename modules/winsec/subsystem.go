package winsec

import (
	"fmt"
)

// Handle references a buffer held by a Subsystem. The zero value means "no
// buffer present". Whether the value is a real pointer into process memory
// or an emulated allocation is up to the Subsystem that issued it, so a
// Handle must only ever be passed back to the Subsystem it came from.
type Handle uintptr

// Subsystem is the boundary to the native security API. Everything above it
// (Sid, SecurityDescriptor) is platform independent, so the whole stack can
// be exercised against the in-memory implementation on any OS.
//
// SubAuthorityCount, IdentifierAuthority and SubAuthority require a handle
// referencing a valid SID; SubAuthority additionally requires index to be
// below the reported count. The checked variants live on Sid.
type Subsystem interface {
	// AllocateSid builds a SID from an identifier authority and 1-8
	// sub-authorities. The returned handle is owned by the caller and must
	// be released with Free exactly once.
	AllocateSid(idAuth [6]byte, subAuths []uint32) (Handle, error)

	// ValidSid reports whether the handle references a well-formed SID.
	ValidSid(h Handle) bool

	SubAuthorityCount(h Handle) byte
	IdentifierAuthority(h Handle) [6]byte
	SubAuthority(h Handle, index byte) uint32

	// StringSid renders the canonical S-1-... form of the SID.
	StringSid(h Handle) (string, error)

	// EqualSid compares two SIDs by content, not by handle identity.
	EqualSid(a, b Handle) bool

	// ACLBytes copies out the self-relative ACL record h points at.
	ACLBytes(h Handle) ([]byte, error)

	// Free releases a buffer previously handed out as owned. Freeing a
	// handle that was never owned, or freeing one twice, is an error.
	Free(h Handle) error
}

// OSError is a failure reported by the native security subsystem. Code
// carries the native error code so callers can decide on retry/abort policy
// themselves.
type OSError struct {
	Call string
	Code uintptr
	Err  error
}

func (e *OSError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v failed: %v (code %#x)", e.Call, e.Err, e.Code)
	}
	return fmt.Sprintf("%v failed with native error %#x", e.Call, e.Code)
}

func (e *OSError) Unwrap() error {
	return e.Err
}
