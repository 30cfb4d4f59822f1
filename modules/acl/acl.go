// Package acl interprets raw self-relative ACL records handed out by
// winsec.SecurityDescriptor. It only parses and renders; whether an access
// should actually be granted is somebody else's decision.
package acl

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/lkarlslund/winsec/modules/util"
	"github.com/lkarlslund/winsec/modules/winsec"
	"github.com/pkg/errors"
)

// http://www.selfadsi.org/deep-inside/ad-security-descriptors.htm

type AccessMask uint32

const (
	// ACE.Type
	ACETYPE_ACCESS_ALLOWED        = 0x00
	ACETYPE_ACCESS_DENIED         = 0x01
	ACETYPE_ACCESS_ALLOWED_OBJECT = 0x05
	ACETYPE_ACCESS_DENIED_OBJECT  = 0x06

	// ACE.ACEFlags
	ACEFLAG_OBJECT_INHERIT_ACE       = 0x01
	ACEFLAG_INHERIT_ACE              = 0x02 // Child objects inherit this ACE
	ACEFLAG_NO_PROPAGATE_INHERIT_ACE = 0x04 // Only the NEXT child inherits this, not further down the line
	ACEFLAG_INHERIT_ONLY_ACE         = 0x08 // Not valid for this object, only for children
	ACEFLAG_INHERITED_ACE            = 0x10 // This ACE was inherited from parent object

	// ACE.Flags - present if this is a ACETYPE_ACCESS_*_OBJECT Type
	OBJECT_TYPE_PRESENT           = 0x01
	INHERITED_OBJECT_TYPE_PRESENT = 0x02
)

const (
	RIGHT_GENERIC_READ    AccessMask = 0x80000000
	RIGHT_GENERIC_WRITE   AccessMask = 0x40000000
	RIGHT_GENERIC_EXECUTE AccessMask = 0x20000000
	RIGHT_GENERIC_ALL     AccessMask = 0x10000000

	RIGHT_MAXIMUM_ALLOWED        AccessMask = 0x02000000 /* Not stored, just for requests */
	RIGHT_ACCESS_SYSTEM_SECURITY AccessMask = 0x01000000 /* Not stored, just for requests */

	RIGHT_SYNCHRONIZE  AccessMask = 0x00100000
	RIGHT_WRITE_OWNER  AccessMask = 0x00080000
	RIGHT_WRITE_DACL   AccessMask = 0x00040000
	RIGHT_READ_CONTROL AccessMask = 0x00020000
	RIGHT_DELETE       AccessMask = 0x00010000
)

var NullGUID = uuid.UUID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

type ACL struct {
	Revision byte
	Entries  []ACE
}

type ACE struct {
	Type                byte
	ACEFlags            byte
	Mask                AccessMask
	SID                 string
	Flags               uint32
	ObjectType          uuid.UUID
	InheritedObjectType uuid.UUID
}

// Parse decodes one self-relative ACL record, typically the DACL or SACL
// bytes from a security descriptor.
func Parse(data []byte) (ACL, error) {
	var acl ACL
	if len(data) < 8 {
		return acl, errors.New("not enough data to be an ACL")
	}
	acl.Revision = data[0]
	if acl.Revision != 1 && acl.Revision != 2 && acl.Revision != 4 {
		return acl, fmt.Errorf("unsupported ACL revision %v", acl.Revision)
	}
	if data[1] != 0 {
		return acl, errors.New("bad Sbz1")
	}
	aclsize := int(binary.LittleEndian.Uint16(data[2:4]))
	if aclsize < 8 || aclsize > len(data) {
		return acl, fmt.Errorf("ACL claims %v bytes, have %v and the header alone is 8", aclsize, len(data))
	}
	acecount := int(binary.LittleEndian.Uint16(data[4:6]))
	if data[6] != 0 || data[7] != 0 {
		return acl, errors.New("bad Sbz2")
	}

	acedata := data[8:aclsize]

	acl.Entries = make([]ACE, acecount)
	for i := 0; i < acecount; i++ {
		ace, remaining, err := parseACE(acedata)
		if err != nil {
			return acl, errors.Wrapf(err, "ACE %v of %v", i, acecount)
		}
		acl.Entries[i] = ace
		acedata = remaining
	}

	return acl, nil
}

func parseACE(odata []byte) (ACE, []byte, error) {
	var ace ACE
	if len(odata) < 8 {
		return ace, odata, errors.New("not enough data to be an ACE")
	}
	// ACEHEADER
	data := odata
	ace.Type = data[0]
	ace.ACEFlags = data[1]
	acesize := int(binary.LittleEndian.Uint16(data[2:]))
	if acesize < 8 || acesize > len(odata) {
		return ace, odata, fmt.Errorf("ACE claims %v bytes, only %v available", acesize, len(odata))
	}
	ace.Mask = AccessMask(binary.LittleEndian.Uint32(data[4:]))

	data = data[8:]
	if ace.Type == ACETYPE_ACCESS_ALLOWED_OBJECT || ace.Type == ACETYPE_ACCESS_DENIED_OBJECT {
		if len(data) < 4 {
			return ace, odata, errors.New("object ACE is missing its flags")
		}
		ace.Flags = binary.LittleEndian.Uint32(data[0:])
		data = data[4:]
		if ace.Flags&OBJECT_TYPE_PRESENT != 0 {
			if len(data) < 16 {
				return ace, odata, errors.New("object ACE is missing its object type")
			}
			objectType, err := uuid.FromBytes(data[0:16])
			if err != nil {
				return ace, data, err
			}
			ace.ObjectType = util.SwapUUIDEndianess(objectType)
			data = data[16:]
		}
		if ace.Flags&INHERITED_OBJECT_TYPE_PRESENT != 0 {
			if len(data) < 16 {
				return ace, odata, errors.New("object ACE is missing its inherited object type")
			}
			inheritedType, err := uuid.FromBytes(data[0:16])
			if err != nil {
				return ace, data, err
			}
			ace.InheritedObjectType = util.SwapUUIDEndianess(inheritedType)
			data = data[16:]
		}
	}

	idAuth, subAuths, _, err := winsec.ParseSidBytes(data)
	if err != nil {
		return ace, data, errors.Wrap(err, "trustee SID")
	}
	ace.SID = winsec.FormatSid(idAuth, subAuths)
	return ace, odata[acesize:], nil
}

func (a ACL) String() string {
	result := fmt.Sprintf("ACL revision %v:\n", a.Revision)
	for _, ace := range a.Entries {
		result += "ACE: " + ace.String() + "\n"
	}
	return result
}

func (a ACE) String() string {
	var result string
	switch a.Type {
	case ACETYPE_ACCESS_ALLOWED:
		result += "Allow"
	case ACETYPE_ACCESS_ALLOWED_OBJECT:
		result += "Allow object"
	case ACETYPE_ACCESS_DENIED:
		result += "Deny"
	case ACETYPE_ACCESS_DENIED_OBJECT:
		result += "Deny object"
	default:
		result += fmt.Sprintf("Unknown type %v", a.Type)
	}

	result += " " + a.SID

	if a.Flags&OBJECT_TYPE_PRESENT != 0 {
		result += " OBJECT " + a.ObjectType.String()
	}
	if a.Flags&INHERITED_OBJECT_TYPE_PRESENT != 0 {
		result += " inherited " + a.InheritedObjectType.String()
	}

	result += fmt.Sprintf(" %08x", uint32(a.Mask))

	var rights []string
	if a.Mask&RIGHT_GENERIC_READ != 0 {
		rights = append(rights, "GENERIC_READ")
	}
	if a.Mask&RIGHT_GENERIC_WRITE != 0 {
		rights = append(rights, "GENERIC_WRITE")
	}
	if a.Mask&RIGHT_GENERIC_EXECUTE != 0 {
		rights = append(rights, "GENERIC_EXECUTE")
	}
	if a.Mask&RIGHT_GENERIC_ALL != 0 {
		rights = append(rights, "GENERIC_ALL")
	}
	if a.Mask&RIGHT_MAXIMUM_ALLOWED != 0 {
		rights = append(rights, "MAXIMUM_ALLOWED")
	}
	if a.Mask&RIGHT_ACCESS_SYSTEM_SECURITY != 0 {
		rights = append(rights, "ACCESS_SYSTEM_SECURITY")
	}
	if a.Mask&RIGHT_SYNCHRONIZE != 0 {
		rights = append(rights, "SYNCHRONIZE")
	}
	if a.Mask&RIGHT_WRITE_OWNER != 0 {
		rights = append(rights, "WRITE_OWNER")
	}
	if a.Mask&RIGHT_WRITE_DACL != 0 {
		rights = append(rights, "WRITE_DACL")
	}
	if a.Mask&RIGHT_READ_CONTROL != 0 {
		rights = append(rights, "READ_CONTROL")
	}
	if a.Mask&RIGHT_DELETE != 0 {
		rights = append(rights, "DELETE")
	}
	if len(rights) > 0 {
		result += " [" + strings.Join(rights, ", ") + "]"
	}
	return result
}

// Deny reports whether any entry denies access; callers doing allow checks
// have to look at deny entries first.
func (a ACL) Deny() bool {
	for _, ace := range a.Entries {
		if ace.Type == ACETYPE_ACCESS_DENIED || ace.Type == ACETYPE_ACCESS_DENIED_OBJECT {
			return true
		}
	}
	return false
}
