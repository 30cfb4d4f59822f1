package winsec

import (
	"syscall"
	"unsafe"

	gsync "github.com/SaveTheRbtz/generic-sync-map-go"
	"golang.org/x/sys/windows"
)

var (
	advapi32                  = windows.NewLazySystemDLL("advapi32.dll")
	procConvertSidToStringSid = advapi32.NewProc("ConvertSidToStringSidW")
	procEqualSid              = advapi32.NewProc("EqualSid")
)

// windowsSubsystem is the real thing. SIDs from AllocateAndInitializeSid
// must be released with FreeSid while everything else (descriptor buffers,
// converted strings) goes through LocalFree, so handles handed out by
// AllocateSid are remembered until they are freed.
type windowsSubsystem struct {
	allocatedSids *gsync.MapOf[Handle, struct{}]
}

var native = windowsSubsystem{allocatedSids: &gsync.MapOf[Handle, struct{}]{}}

// Native returns the security subsystem for this platform.
func Native() Subsystem {
	return native
}

func errnoCode(err error) uintptr {
	if errno, ok := err.(syscall.Errno); ok {
		return uintptr(errno)
	}
	return 0
}

func (s windowsSubsystem) AllocateSid(idAuth [6]byte, subAuths []uint32) (Handle, error) {
	if len(subAuths) < 1 || len(subAuths) > MaxAllocatedSubAuthorities {
		return 0, &OSError{Call: "AllocateAndInitializeSid", Code: errorInvalidParameter}
	}
	var sub [8]uint32
	copy(sub[:], subAuths)
	auth := windows.SidIdentifierAuthority{Value: idAuth}
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(&auth, byte(len(subAuths)),
		sub[0], sub[1], sub[2], sub[3], sub[4], sub[5], sub[6], sub[7], &sid)
	if err != nil {
		return 0, &OSError{Call: "AllocateAndInitializeSid", Code: errnoCode(err), Err: err}
	}
	h := Handle(unsafe.Pointer(sid))
	s.allocatedSids.Store(h, struct{}{})
	return h, nil
}

func (s windowsSubsystem) ValidSid(h Handle) bool {
	return (*windows.SID)(unsafe.Pointer(h)).IsValid()
}

func (s windowsSubsystem) SubAuthorityCount(h Handle) byte {
	return (*windows.SID)(unsafe.Pointer(h)).SubAuthorityCount()
}

func (s windowsSubsystem) IdentifierAuthority(h Handle) [6]byte {
	return (*windows.SID)(unsafe.Pointer(h)).IdentifierAuthority().Value
}

func (s windowsSubsystem) SubAuthority(h Handle, index byte) uint32 {
	return (*windows.SID)(unsafe.Pointer(h)).SubAuthority(uint32(index))
}

func (s windowsSubsystem) StringSid(h Handle) (string, error) {
	var buf *uint16
	ret, _, err := procConvertSidToStringSid.Call(uintptr(h), uintptr(unsafe.Pointer(&buf)))
	if ret == 0 {
		return "", &OSError{Call: "ConvertSidToStringSid", Code: errnoCode(err), Err: err}
	}
	str := windows.UTF16PtrToString(buf)
	windows.LocalFree(windows.Handle(unsafe.Pointer(buf)))
	return str, nil
}

func (s windowsSubsystem) EqualSid(a, b Handle) bool {
	ret, _, _ := procEqualSid.Call(uintptr(a), uintptr(b))
	return ret != 0
}

func (s windowsSubsystem) ACLBytes(h Handle) ([]byte, error) {
	acl := (*windows.ACL)(unsafe.Pointer(h))
	// Absolutely horrendous, but I don't see any other way - see windows.ACL definition
	size := (*[2]uint16)(unsafe.Pointer(acl))[1]
	if size < 8 {
		return nil, &OSError{Call: "ACLBytes", Code: errorInvalidParameter}
	}
	out := make([]byte, size)
	copy(out, (*[0x7fff0000]byte)(unsafe.Pointer(acl))[:size:size])
	return out, nil
}

func (s windowsSubsystem) Free(h Handle) error {
	if _, sidAllocated := s.allocatedSids.LoadAndDelete(h); sidAllocated {
		return windows.FreeSid((*windows.SID)(unsafe.Pointer(h)))
	}
	_, err := windows.LocalFree(windows.Handle(h))
	return err
}

// GetNamedSecurityDescriptor retrieves the owner, group and DACL of a named
// object. The returned descriptor owns the native buffer and must be
// released with Free.
func GetNamedSecurityDescriptor(objectName string, objectType ObjectType) (*SecurityDescriptor, error) {
	sd, err := windows.GetNamedSecurityInfo(objectName, windows.SE_OBJECT_TYPE(objectType),
		windows.OWNER_SECURITY_INFORMATION|windows.GROUP_SECURITY_INFORMATION|windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return nil, err
	}

	var owner, group *windows.SID
	var dacl *windows.ACL
	owner, _, err = sd.Owner()
	if err == nil {
		group, _, err = sd.Group()
	}
	if err == nil {
		// No DACL at all is fine, the descriptor just won't carry one
		dacl, _, _ = sd.DACL()
	}
	if err != nil {
		windows.LocalFree(windows.Handle(unsafe.Pointer(sd)))
		return nil, err
	}

	return FromRaw(Native(),
		Handle(unsafe.Pointer(sd)),
		Handle(unsafe.Pointer(owner)),
		Handle(unsafe.Pointer(group)),
		Handle(unsafe.Pointer(dacl)),
		0), nil
}
