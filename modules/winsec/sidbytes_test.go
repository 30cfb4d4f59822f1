package winsec

import (
	"bytes"
	"testing"
)

func TestSidBytesRoundTrip(t *testing.T) {
	for count := 0; count <= MaxSubAuthorities; count++ {
		subAuths := make([]uint32, count)
		for i := range subAuths {
			subAuths[i] = uint32(i) * 0x11111111
		}
		encoded := AppendSidBytes(nil, ntAuthority, subAuths)
		if len(encoded) != SidBytesLen(count) {
			t.Errorf("count %v: encoded %v bytes, want %v", count, len(encoded), SidBytesLen(count))
		}
		trailer := []byte{0xde, 0xad}
		auth, decoded, rest, err := ParseSidBytes(append(encoded, trailer...))
		if err != nil {
			t.Fatalf("count %v: ParseSidBytes() failed: %v", count, err)
		}
		if auth != ntAuthority {
			t.Errorf("count %v: authority = %x, want %x", count, auth, ntAuthority)
		}
		if len(decoded) != count {
			t.Fatalf("count %v: decoded %v subauthorities", count, len(decoded))
		}
		for i := range decoded {
			if decoded[i] != subAuths[i] {
				t.Errorf("count %v: subauthority %v = %v, want %v", count, i, decoded[i], subAuths[i])
			}
		}
		if !bytes.Equal(rest, trailer) {
			t.Errorf("count %v: rest = %x, want %x", count, rest, trailer)
		}
	}
}

func TestParseSidBytesRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{1, 1, 0, 0}},
		{"wrong revision", append([]byte{2, 1}, make([]byte, 10)...)},
		{"count too high", append([]byte{1, 16}, make([]byte, 70)...)},
		{"cut short", []byte{1, 2, 0, 0, 0, 0, 0, 5, 1, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParseSidBytes(tt.data); err == nil {
				t.Error("ParseSidBytes() accepted garbage")
			}
		})
	}
}

func TestParseStringSidRejectsGarbage(t *testing.T) {
	tests := []string{
		"",
		"S-1",
		"X-1-5-32",
		"s-1-5-32",
		"S-2-5-32",
		"S-1-noauthority",
		"S-1-0xnothex-1",
		"S-1-5-notanumber",
		"S-1-5-4294967296",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, _, err := ParseStringSid(input); err == nil {
				t.Errorf("ParseStringSid(%q) accepted garbage", input)
			}
		})
	}
}

func TestFormatSidLargeAuthority(t *testing.T) {
	// Authorities of 2^32 and above switch to hex, like the native
	// conversion does.
	auth := [6]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	got := FormatSid(auth, []uint32{1})
	want := "S-1-0x010203040506-1"
	if got != want {
		t.Errorf("FormatSid() = %v, want %v", got, want)
	}
	parsed, subs, err := ParseStringSid(got)
	if err != nil {
		t.Fatal(err)
	}
	if parsed != auth || len(subs) != 1 || subs[0] != 1 {
		t.Errorf("round trip = %x %v", parsed, subs)
	}
}

func FuzzParseSidBytes(f *testing.F) {
	f.Add([]byte{1, 0, 0, 0, 0, 0, 0, 5})
	f.Add(AppendSidBytes(nil, ntAuthority, []uint32{21, 1, 2, 3}))
	f.Add(AppendSidBytes(nil, [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, make([]uint32, 15)))
	f.Add([]byte{1, 15})
	f.Fuzz(func(t *testing.T, data []byte) {
		auth, subAuths, rest, err := ParseSidBytes(data)
		if err != nil {
			return
		}
		if len(rest) > len(data) {
			t.Fatal("rest longer than input")
		}
		consumed := len(data) - len(rest)
		if consumed != SidBytesLen(len(subAuths)) {
			t.Fatalf("consumed %v bytes for %v subauthorities", consumed, len(subAuths))
		}
		reencoded := AppendSidBytes(nil, auth, subAuths)
		if !bytes.Equal(reencoded, data[:consumed]) {
			t.Fatalf("re-encoding %x != original %x", reencoded, data[:consumed])
		}
	})
}
