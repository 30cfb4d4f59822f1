//go:build !windows
// +build !windows

package winsec

import (
	"errors"
)

var native = NewMemory()

// Native returns the security subsystem for this platform. There is no
// native security API outside Windows, so this is the in-memory emulation.
func Native() Subsystem {
	return native
}

func GetNamedSecurityDescriptor(objectName string, objectType ObjectType) (*SecurityDescriptor, error) {
	return nil, errors.New("Unsupported on this platform")
}
