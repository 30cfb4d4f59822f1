package winsec

import (
	"fmt"
)

// SecurityDescriptor wraps one owned self-relative descriptor buffer plus
// up to four handles pointing into it: owner SID, group SID, DACL and SACL,
// any of which may be absent. The buffer outlives every handle derived from
// it and is released exactly once by Free; the sub-handles are never
// released on their own.
type SecurityDescriptor struct {
	sys   Subsystem
	sd    Handle
	owner Handle
	group Handle
	dacl  Handle
	sacl  Handle
}

// FromRaw assembles a SecurityDescriptor from the five values a native
// security-descriptor-retrieval call produces.
//
// The descriptor buffer must have been handed out as owned by sys, and each
// of the four sub-handles, when non-zero, must point into that buffer or at
// memory whose validity is tied to it. A null descriptor buffer means a
// prior failure went unchecked by the caller, which is a contract violation
// and panics before any sub-handle is touched.
func FromRaw(sys Subsystem, sd, owner, group, dacl, sacl Handle) *SecurityDescriptor {
	if sd == 0 {
		panic(InvariantError{"FromRaw called with null security descriptor buffer"})
	}
	return &SecurityDescriptor{
		sys:   sys,
		sd:    sd,
		owner: owner,
		group: group,
		dacl:  dacl,
		sacl:  sacl,
	}
}

func (d *SecurityDescriptor) live() Handle {
	if d.sd == 0 {
		panic(InvariantError{"use of freed SecurityDescriptor"})
	}
	return d.sd
}

// Owner returns a borrowed view of the owner SID, or false if the
// descriptor has none. The view must not be used after Free.
func (d *SecurityDescriptor) Owner() (*Sid, bool) {
	d.live()
	if d.owner == 0 {
		return nil, false
	}
	return BorrowedFromHandle(d.sys, d.owner), true
}

// Group returns a borrowed view of the group SID, or false if the
// descriptor has none. The view must not be used after Free.
func (d *SecurityDescriptor) Group() (*Sid, bool) {
	d.live()
	if d.group == 0 {
		return nil, false
	}
	return BorrowedFromHandle(d.sys, d.group), true
}

// DACL copies out the raw discretionary ACL record. A descriptor without a
// DACL yields nil bytes and no error; absence is not a failure.
// Interpreting the record is the acl package's job.
func (d *SecurityDescriptor) DACL() ([]byte, error) {
	d.live()
	if d.dacl == 0 {
		return nil, nil
	}
	return d.sys.ACLBytes(d.dacl)
}

// SACL copies out the raw system ACL record. A descriptor without a SACL
// yields nil bytes and no error.
func (d *SecurityDescriptor) SACL() ([]byte, error) {
	d.live()
	if d.sacl == 0 {
		return nil, nil
	}
	return d.sys.ACLBytes(d.sacl)
}

// Free releases the descriptor buffer. The first call releases, later calls
// are no-ops. This object owns the buffer exclusively, so a release failure
// is a violated invariant and panics.
func (d *SecurityDescriptor) Free() {
	if d.sd == 0 {
		return
	}
	if err := d.sys.Free(d.sd); err != nil {
		panic(InvariantError{fmt.Sprintf("releasing security descriptor buffer failed: %v", err)})
	}
	d.sd = 0
	d.owner, d.group, d.dacl, d.sacl = 0, 0, 0, 0
}
