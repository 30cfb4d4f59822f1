package winsec

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ERROR_INVALID_SID, reported when a freshly allocated SID fails the
// post-allocation validity check.
const errorInvalidSid = 1337

// InvariantError is the fatal error tier: a violated contract that the
// caller promised to uphold, or a native failure that cannot happen during
// correct usage. It is delivered by panic, never as a return value.
type InvariantError struct {
	Reason string
}

func (e InvariantError) Error() string {
	return "winsec invariant violated: " + e.Reason
}

// Sid is a native security identifier. A Sid either owns its buffer (it was
// allocated for this Sid and Free must be called exactly once), or it is a
// borrowed view into a buffer owned by someone else, typically a
// SecurityDescriptor. Which of the two it is gets decided by the
// construction path and never changes.
type Sid struct {
	sys    Subsystem
	handle Handle
	owned  bool
}

// NewSid allocates a SID from an identifier authority and 1-8
// sub-authorities, then asserts that the native subsystem considers the
// result valid. A SID from a successful allocation should always validate,
// but this is checked rather than assumed; on validation failure the buffer
// is released before the error is returned.
func NewSid(sys Subsystem, idAuth [6]byte, subAuths ...uint32) (*Sid, error) {
	if len(subAuths) < 1 || len(subAuths) > MaxAllocatedSubAuthorities {
		return nil, fmt.Errorf("SID must have between 1 and %v subauthorities, got %v", MaxAllocatedSubAuthorities, len(subAuths))
	}
	h, err := sys.AllocateSid(idAuth, subAuths)
	if err != nil {
		return nil, err
	}
	sid := OwnedFromHandle(sys, h)
	if !sys.ValidSid(h) {
		sid.Free()
		return nil, &OSError{Call: "IsValidSid", Code: errorInvalidSid}
	}
	return sid, nil
}

// OwnedFromHandle takes ownership of a handle.
//
// The handle must be non-zero and must reference a SID allocated by sys,
// with nothing else holding release responsibility for it. The returned Sid
// releases the buffer when Free is called.
func OwnedFromHandle(sys Subsystem, h Handle) *Sid {
	if h == 0 {
		panic(InvariantError{"OwnedFromHandle called with null handle"})
	}
	return &Sid{sys: sys, handle: h, owned: true}
}

// BorrowedFromHandle wraps a handle as a read-only view.
//
// The handle must be non-zero, must reference a valid SID inside a buffer
// owned by someone else, and the view must not be used past that buffer's
// release. A SID record has no static size, so the memory covered by this
// promise depends on the sub-authority count stored in the record itself;
// only pass handles produced by the subsystem.
func BorrowedFromHandle(sys Subsystem, h Handle) *Sid {
	if h == 0 {
		panic(InvariantError{"BorrowedFromHandle called with null handle"})
	}
	return &Sid{sys: sys, handle: h, owned: false}
}

func (s *Sid) live() Handle {
	if s.handle == 0 {
		panic(InvariantError{"use of freed Sid"})
	}
	return s.handle
}

// Handle exposes the underlying handle for calls that want raw SID
// pointers. The handle stays owned by this Sid.
func (s *Sid) Handle() Handle {
	return s.live()
}

// Owned reports whether this Sid releases its buffer on Free.
func (s *Sid) Owned() bool {
	return s.owned
}

// SubAuthorityCount returns the number of sub-authorities in the SID.
func (s *Sid) SubAuthorityCount() byte {
	return s.sys.SubAuthorityCount(s.live())
}

// IdentifierAuthority returns the 6-byte identifier authority of the SID.
func (s *Sid) IdentifierAuthority() [6]byte {
	return s.sys.IdentifierAuthority(s.live())
}

// SubAuthority returns the sub-authority at index, or false if the SID has
// too few sub-authorities. No out-of-bounds read happens for any index.
func (s *Sid) SubAuthority(index byte) (uint32, bool) {
	h := s.live()
	if index >= s.sys.SubAuthorityCount(h) {
		return 0, false
	}
	return s.sys.SubAuthority(h, index), true
}

// Equal compares two SIDs by content via the native subsystem. Handle
// identity does not matter; two independently allocated SIDs with the same
// authority and sub-authorities are equal.
func (s *Sid) Equal(other *Sid) bool {
	if other == nil {
		return false
	}
	return s.sys.EqualSid(s.live(), other.live())
}

// String renders the canonical S-1-... form. Conversion cannot fail on a
// Sid that passed validation, so a failure here is a violated invariant.
func (s *Sid) String() string {
	str, err := s.sys.StringSid(s.live())
	if err != nil {
		panic(InvariantError{fmt.Sprintf("SID-to-string conversion failed on a validated SID: %v", err)})
	}
	return str
}

// MarshalZerologObject emits the debug form: authority, count and all eight
// sub-authority slots, absent slots shown as empty.
func (s *Sid) MarshalZerologObject(e *zerolog.Event) {
	auth := s.IdentifierAuthority()
	e.Hex("id_auth", auth[:])
	e.Uint8("sub_auth_count", s.SubAuthorityCount())
	for i := byte(0); i < MaxAllocatedSubAuthorities; i++ {
		key := fmt.Sprintf("sub_auths[%d]", i)
		if v, ok := s.SubAuthority(i); ok {
			e.Uint32(key, v)
		} else {
			e.Str(key, "")
		}
	}
}

// Free releases the buffer of an owned Sid. The first call releases, later
// calls are no-ops. Releasing cannot fail under correct usage, so a failure
// reported by the subsystem panics. Calling Free on a borrowed view is a
// contract violation and also panics; views are released by whoever owns
// the buffer they point into.
func (s *Sid) Free() {
	if !s.owned {
		panic(InvariantError{"Free called on a borrowed Sid view"})
	}
	if s.handle == 0 {
		return
	}
	if err := s.sys.Free(s.handle); err != nil {
		panic(InvariantError{fmt.Sprintf("releasing owned SID buffer failed: %v", err)})
	}
	s.handle = 0
}
