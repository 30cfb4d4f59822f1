package winsec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Self-relative SID record layout:
// 0 = revision (always 1)
// 1 = subauthority count
// 2-7 = authority (big endian)
// 8-11+ = chunks of 4 with subauthorities (little endian)

const (
	// SidRevision is the only revision this package understands.
	SidRevision = 1
	// MaxSubAuthorities is the most sub-authorities a SID record may carry.
	MaxSubAuthorities = 15
	// MaxAllocatedSubAuthorities bounds direct construction, matching the
	// native allocation call which takes at most 8 values.
	MaxAllocatedSubAuthorities = 8
)

var ErrOnlySidRevision1Supported = errors.New("only SID revision 1 supported")

// ParseSidBytes decodes one SID record from the start of data, returning the
// identifier authority, the sub-authorities and the bytes following the
// record.
func ParseSidBytes(data []byte) (idAuth [6]byte, subAuths []uint32, rest []byte, err error) {
	if len(data) < 8 {
		return idAuth, nil, data, errors.New("not enough data to be a SID")
	}
	if data[0] != SidRevision {
		if len(data) > 32 {
			data = data[:32]
		}
		return idAuth, nil, data, fmt.Errorf("SID revision must be 1 (dump %x ...)", data)
	}
	count := int(data[1])
	if count > MaxSubAuthorities {
		return idAuth, nil, data, errors.New("SID subauthority count is more than 15")
	}
	end := 8 + 4*count
	if len(data) < end {
		return idAuth, nil, data, errors.New("SID record is cut short")
	}
	copy(idAuth[:], data[2:8])
	subAuths = make([]uint32, count)
	for i := range subAuths {
		subAuths[i] = binary.LittleEndian.Uint32(data[8+4*i:])
	}
	return idAuth, subAuths, data[end:], nil
}

// AppendSidBytes appends the SID record encoding of the authority and
// sub-authorities to buf.
func AppendSidBytes(buf []byte, idAuth [6]byte, subAuths []uint32) []byte {
	buf = append(buf, SidRevision, byte(len(subAuths)))
	buf = append(buf, idAuth[:]...)
	for _, sub := range subAuths {
		buf = binary.LittleEndian.AppendUint32(buf, sub)
	}
	return buf
}

// SidBytesLen returns the encoded size of a SID with count sub-authorities.
func SidBytesLen(count int) int {
	return 8 + 4*count
}

// FormatSid renders the canonical string form. Authorities of 2^32 and
// above print as 12 hex digits, matching ConvertSidToStringSid.
func FormatSid(idAuth [6]byte, subAuths []uint32) string {
	var authority uint64
	for i := 0; i <= 5; i++ {
		authority = authority<<8 | uint64(idAuth[i])
	}
	var sb strings.Builder
	if authority < 1<<32 {
		fmt.Fprintf(&sb, "S-1-%d", authority)
	} else {
		fmt.Fprintf(&sb, "S-1-0x%012X", authority)
	}
	for _, sub := range subAuths {
		fmt.Fprintf(&sb, "-%d", sub)
	}
	return sb.String()
}

// ParseStringSid parses the canonical "S-1-..." form back into an authority
// and sub-authorities.
func ParseStringSid(input string) (idAuth [6]byte, subAuths []uint32, err error) {
	if len(input) < 5 {
		return idAuth, nil, errors.New("SID string is too short to be a SID")
	}
	if input[0] != 'S' {
		return idAuth, nil, errors.New("SID must start with S")
	}
	parts := strings.Split(input, "-")
	if len(parts) < 3 {
		return idAuth, nil, errors.New("less than one subauthority found")
	}

	revision, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return idAuth, nil, err
	}
	if revision != SidRevision {
		return idAuth, nil, ErrOnlySidRevision1Supported
	}

	var authority uint64
	if strings.HasPrefix(parts[2], "0x") {
		authority, err = strconv.ParseUint(parts[2][2:], 16, 48)
	} else {
		authority, err = strconv.ParseUint(parts[2], 10, 48)
	}
	if err != nil {
		return idAuth, nil, err
	}
	var authslice [8]byte
	binary.BigEndian.PutUint64(authslice[:], authority<<16) // dirty tricks
	copy(idAuth[:], authslice[0:6])

	subAuths = make([]uint32, len(parts)-3)
	for i := range subAuths {
		sub, err := strconv.ParseUint(parts[3+i], 10, 32)
		if err != nil {
			return idAuth, nil, err
		}
		subAuths[i] = uint32(sub)
	}
	return idAuth, subAuths, nil
}
