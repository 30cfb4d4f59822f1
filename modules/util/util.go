package util

import (
	"strconv"
	"unicode"

	"github.com/gofrs/uuid"
)

// SwapUUIDEndianess converts between the on-disk mixed-endian GUID layout
// and the big-endian layout uuid.FromBytes expects.
func SwapUUIDEndianess(u uuid.UUID) uuid.UUID {
	var r uuid.UUID
	r[0], r[1], r[2], r[3] = u[3], u[2], u[1], u[0]
	r[4], r[5] = u[5], u[4]
	r[6], r[7] = u[7], u[6]
	copy(r[8:], u[8:])
	return r
}

func Hexify(s string) string {
	var o string
	for _, c := range s {
		if unicode.IsPrint(c) {
			o += string(c)
		} else {
			o += "\\x" + strconv.FormatInt(int64(c), 16)
		}
	}
	return o
}
