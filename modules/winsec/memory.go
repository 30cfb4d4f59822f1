package winsec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ERROR_INVALID_PARAMETER, reported for allocation requests the native call
// would reject.
const errorInvalidParameter = 87

// Self-relative security descriptor header:
// 0 = revision (always 1)
// 1 = Sbz1
// 2-3 = control flags
// 4-7 = owner offset
// 8-11 = group offset
// 12-15 = SACL offset
// 16-19 = DACL offset

const (
	sdHeaderLen         = 20
	controlSACLPresent  = 0x0010
	controlDACLPresent  = 0x0004
	controlSelfRelative = 0x8000
)

// Memory is a Subsystem that emulates the native security API over
// self-relative byte records. It backs the whole stack on platforms without
// the native API and doubles as the mock collaborator in tests: handles are
// tracked, so double releases, releases of borrowed views and use of bogus
// handles all surface as errors or panics instead of corrupting memory.
type Memory struct {
	mu      sync.Mutex
	next    Handle
	regions map[Handle]*memRegion
}

type memRegion struct {
	data  []byte
	owned bool // release responsibility was handed to the caller
	freed bool
}

func NewMemory() *Memory {
	return &Memory{
		next:    0x1000,
		regions: make(map[Handle]*memRegion),
	}
}

func (m *Memory) insert(data []byte, owned bool) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.next
	m.next += 0x10
	m.regions[h] = &memRegion{data: data, owned: owned}
	return h
}

// region returns the live region behind h, or nil if the handle was never
// issued or has been freed.
func (m *Memory) region(h Handle) *memRegion {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.regions[h]
	if r == nil || r.freed {
		return nil
	}
	return r
}

// sidRegion is for the accessors that require a valid SID handle; handing
// them anything else is a caller bug, not a runtime condition.
func (m *Memory) sidRegion(h Handle) *memRegion {
	r := m.region(h)
	if r == nil {
		panic(InvariantError{fmt.Sprintf("SID accessor called with dead handle %#x", uintptr(h))})
	}
	return r
}

func (m *Memory) AllocateSid(idAuth [6]byte, subAuths []uint32) (Handle, error) {
	if len(subAuths) < 1 || len(subAuths) > MaxAllocatedSubAuthorities {
		return 0, &OSError{Call: "AllocateAndInitializeSid", Code: errorInvalidParameter}
	}
	data := AppendSidBytes(make([]byte, 0, SidBytesLen(len(subAuths))), idAuth, subAuths)
	return m.insert(data, true), nil
}

func (m *Memory) ValidSid(h Handle) bool {
	r := m.region(h)
	if r == nil {
		return false
	}
	_, _, _, err := ParseSidBytes(r.data)
	return err == nil
}

func (m *Memory) SubAuthorityCount(h Handle) byte {
	return m.sidRegion(h).data[1]
}

func (m *Memory) IdentifierAuthority(h Handle) [6]byte {
	var auth [6]byte
	copy(auth[:], m.sidRegion(h).data[2:8])
	return auth
}

func (m *Memory) SubAuthority(h Handle, index byte) uint32 {
	r := m.sidRegion(h)
	if index >= r.data[1] {
		panic(InvariantError{fmt.Sprintf("unchecked SubAuthority read at index %v of %v", index, r.data[1])})
	}
	return binary.LittleEndian.Uint32(r.data[8+4*int(index):])
}

func (m *Memory) StringSid(h Handle) (string, error) {
	r := m.region(h)
	if r == nil {
		return "", errors.New("dead SID handle")
	}
	idAuth, subAuths, _, err := ParseSidBytes(r.data)
	if err != nil {
		return "", err
	}
	return FormatSid(idAuth, subAuths), nil
}

func (m *Memory) EqualSid(a, b Handle) bool {
	ra, rb := m.sidRegion(a), m.sidRegion(b)
	la, lb := SidBytesLen(int(ra.data[1])), SidBytesLen(int(rb.data[1]))
	if la != lb || len(ra.data) < la || len(rb.data) < lb {
		return false
	}
	return string(ra.data[:la]) == string(rb.data[:lb])
}

func (m *Memory) ACLBytes(h Handle) ([]byte, error) {
	r := m.region(h)
	if r == nil {
		return nil, errors.New("dead ACL handle")
	}
	if len(r.data) < 8 {
		return nil, errors.New("not enough data to be an ACL")
	}
	size := int(binary.LittleEndian.Uint16(r.data[2:4]))
	if size < 8 || size > len(r.data) {
		return nil, fmt.Errorf("ACL claims %v bytes, only %v available", size, len(r.data))
	}
	out := make([]byte, size)
	copy(out, r.data)
	return out, nil
}

func (m *Memory) Free(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.regions[h]
	switch {
	case r == nil:
		return fmt.Errorf("free of unknown handle %#x", uintptr(h))
	case r.freed:
		return fmt.Errorf("double free of handle %#x", uintptr(h))
	case !r.owned:
		return fmt.Errorf("free of borrowed handle %#x", uintptr(h))
	}
	r.freed = true
	return nil
}

// RawDescriptor carries what a descriptor retrieval call produces: the
// owned buffer handle and four optional handles into it.
type RawDescriptor struct {
	Buffer Handle
	Owner  Handle
	Group  Handle
	DACL   Handle
	SACL   Handle
}

// NewSecurityDescriptor assembles a self-relative descriptor buffer from
// optional SID records (owner, group) and raw ACL records (dacl, sacl). It
// hands back the owned buffer handle plus borrowed view handles for every
// part that is present, which is exactly the shape FromRaw wants.
func (m *Memory) NewSecurityDescriptor(owner, group, dacl, sacl []byte) (RawDescriptor, error) {
	for _, sid := range [][]byte{owner, group} {
		if sid == nil {
			continue
		}
		if _, _, _, err := ParseSidBytes(sid); err != nil {
			return RawDescriptor{}, err
		}
	}

	var control uint16 = controlSelfRelative
	buf := make([]byte, sdHeaderLen, sdHeaderLen+len(owner)+len(group)+len(dacl)+len(sacl))
	buf[0] = 1

	appendPart := func(part []byte, offsetField int) int {
		if part == nil {
			return 0
		}
		offset := len(buf)
		binary.LittleEndian.PutUint32(buf[offsetField:], uint32(offset))
		buf = append(buf, part...)
		return offset
	}
	ownerOffset := appendPart(owner, 4)
	groupOffset := appendPart(group, 8)
	saclOffset := appendPart(sacl, 12)
	if saclOffset != 0 {
		control |= controlSACLPresent
	}
	daclOffset := appendPart(dacl, 16)
	if daclOffset != 0 {
		control |= controlDACLPresent
	}
	binary.LittleEndian.PutUint16(buf[2:], control)

	raw := RawDescriptor{Buffer: m.insert(buf, true)}
	view := func(offset int) Handle {
		if offset == 0 {
			return 0
		}
		return m.insert(buf[offset:], false)
	}
	raw.Owner = view(ownerOffset)
	raw.Group = view(groupOffset)
	raw.DACL = view(daclOffset)
	raw.SACL = view(saclOffset)
	return raw, nil
}
