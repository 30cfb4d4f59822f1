package winsec

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// hookedSubsystem lets tests intercept single subsystem calls and count
// releases.
type hookedSubsystem struct {
	Subsystem
	validSid  func(Handle) bool
	stringSid func(Handle) (string, error)
	frees     int
}

func (h *hookedSubsystem) ValidSid(x Handle) bool {
	if h.validSid != nil {
		return h.validSid(x)
	}
	return h.Subsystem.ValidSid(x)
}

func (h *hookedSubsystem) StringSid(x Handle) (string, error) {
	if h.stringSid != nil {
		return h.stringSid(x)
	}
	return h.Subsystem.StringSid(x)
}

func (h *hookedSubsystem) Free(x Handle) error {
	h.frees++
	return h.Subsystem.Free(x)
}

func expectInvariantPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic, got none")
		}
		if _, ok := r.(InvariantError); !ok {
			t.Fatalf("expected InvariantError, got %v", r)
		}
	}()
	f()
}

var ntAuthority = [6]byte{0, 0, 0, 0, 0, 5}

func TestNewSidRoundTrip(t *testing.T) {
	sys := NewMemory()
	authorities := [][6]byte{
		{0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 1},
		ntAuthority,
		{0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa},
	}
	for _, auth := range authorities {
		for count := 1; count <= MaxAllocatedSubAuthorities; count++ {
			subAuths := make([]uint32, count)
			for i := range subAuths {
				subAuths[i] = uint32(i)*0x01010101 + 7
			}
			t.Run(fmt.Sprintf("%x-%d", auth, count), func(t *testing.T) {
				sid, err := NewSid(sys, auth, subAuths...)
				if err != nil {
					t.Fatalf("NewSid() failed: %v", err)
				}
				defer sid.Free()
				if got := sid.IdentifierAuthority(); got != auth {
					t.Errorf("IdentifierAuthority() = %x, want %x", got, auth)
				}
				if got := sid.SubAuthorityCount(); int(got) != count {
					t.Errorf("SubAuthorityCount() = %v, want %v", got, count)
				}
				for i, want := range subAuths {
					got, ok := sid.SubAuthority(byte(i))
					if !ok || got != want {
						t.Errorf("SubAuthority(%v) = %v, %v, want %v, true", i, got, ok, want)
					}
				}
			})
		}
	}
}

func TestSubAuthorityBounds(t *testing.T) {
	sys := NewMemory()
	for count := 1; count <= MaxAllocatedSubAuthorities; count++ {
		subAuths := make([]uint32, count)
		for i := range subAuths {
			subAuths[i] = uint32(1000 + i)
		}
		sid, err := NewSid(sys, ntAuthority, subAuths...)
		if err != nil {
			t.Fatalf("NewSid() failed: %v", err)
		}
		for index := 0; index <= 255; index++ {
			got, ok := sid.SubAuthority(byte(index))
			if index < count {
				if !ok || got != subAuths[index] {
					t.Errorf("count %v: SubAuthority(%v) = %v, %v, want %v, true", count, index, got, ok, subAuths[index])
				}
			} else if ok {
				t.Errorf("count %v: SubAuthority(%v) = %v, true, want absent", count, index, got)
			}
		}
		sid.Free()
	}
}

func TestNewSidRejectsBadCounts(t *testing.T) {
	sys := NewMemory()
	if _, err := NewSid(sys, ntAuthority); err == nil {
		t.Error("NewSid() with no subauthorities should fail")
	}
	nine := make([]uint32, 9)
	if _, err := NewSid(sys, ntAuthority, nine...); err == nil {
		t.Error("NewSid() with 9 subauthorities should fail")
	}
}

func TestSidEquality(t *testing.T) {
	sys := NewMemory()
	a, err := NewSid(sys, ntAuthority, 32, 544)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Free()
	b, err := NewSid(sys, ntAuthority, 32, 544)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Free()
	c, err := NewSid(sys, ntAuthority, 32, 545)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Free()

	if !a.Equal(a) {
		t.Error("equality is not reflexive")
	}
	if !a.Equal(b) || !b.Equal(a) {
		t.Error("independently constructed SIDs with identical content should be equal both ways")
	}
	if a.Equal(c) || c.Equal(a) {
		t.Error("SIDs differing in one subauthority should not be equal")
	}
	if a.Equal(nil) {
		t.Error("no SID equals nil")
	}
}

func TestSidStringRoundTrip(t *testing.T) {
	sys := NewMemory()
	tests := []struct {
		auth     [6]byte
		subAuths []uint32
		want     string
	}{
		{ntAuthority, []uint32{32, 544}, "S-1-5-32-544"},
		{[6]byte{0, 0, 0, 0, 0, 1}, []uint32{0}, "S-1-1-0"},
		{ntAuthority, []uint32{21, 1, 2, 3, 500}, "S-1-5-21-1-2-3-500"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			sid, err := NewSid(sys, tt.auth, tt.subAuths...)
			if err != nil {
				t.Fatalf("NewSid() failed: %v", err)
			}
			defer sid.Free()
			got := sid.String()
			if got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
			auth, subAuths, err := ParseStringSid(got)
			if err != nil {
				t.Fatalf("ParseStringSid(%v) failed: %v", got, err)
			}
			if auth != tt.auth {
				t.Errorf("round-tripped authority = %x, want %x", auth, tt.auth)
			}
			if len(subAuths) != len(tt.subAuths) {
				t.Fatalf("round-tripped %v subauthorities, want %v", len(subAuths), len(tt.subAuths))
			}
			for i := range subAuths {
				if subAuths[i] != tt.subAuths[i] {
					t.Errorf("round-tripped subauthority %v = %v, want %v", i, subAuths[i], tt.subAuths[i])
				}
			}
		})
	}
}

func TestStringFailureOnValidatedSidIsFatal(t *testing.T) {
	hooked := &hookedSubsystem{
		Subsystem: NewMemory(),
		stringSid: func(Handle) (string, error) { return "", errors.New("simulated conversion failure") },
	}
	sid, err := NewSid(hooked, ntAuthority, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer sid.Free()
	expectInvariantPanic(t, func() { _ = sid.String() })
}

func TestDebugRendering(t *testing.T) {
	sys := NewMemory()
	sid, err := NewSid(sys, ntAuthority, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer sid.Free()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Info().Object("sid", sid).Send()
	out := buf.String()
	for _, want := range []string{
		`"id_auth":"000000000005"`,
		`"sub_auth_count":2`,
		`"sub_auths[0]":1`,
		`"sub_auths[1]":2`,
		`"sub_auths[2]":""`,
		`"sub_auths[7]":""`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("debug output %v is missing %v", out, want)
		}
	}
}

func TestValidationFailureReleasesExactlyOnce(t *testing.T) {
	hooked := &hookedSubsystem{
		Subsystem: NewMemory(),
		validSid:  func(Handle) bool { return false },
	}
	_, err := NewSid(hooked, ntAuthority, 1, 2, 3)
	if err == nil {
		t.Fatal("NewSid() should fail when validation fails")
	}
	var oserr *OSError
	if !errors.As(err, &oserr) {
		t.Fatalf("expected an *OSError, got %T", err)
	}
	if hooked.frees != 1 {
		t.Errorf("allocation was released %v times, want exactly once", hooked.frees)
	}
}

func TestFreeIsIdempotent(t *testing.T) {
	hooked := &hookedSubsystem{Subsystem: NewMemory()}
	sid, err := NewSid(hooked, ntAuthority, 1)
	if err != nil {
		t.Fatal(err)
	}
	sid.Free()
	sid.Free()
	if hooked.frees != 1 {
		t.Errorf("buffer was released %v times, want exactly once", hooked.frees)
	}
}

func TestFreeingBorrowedViewPanics(t *testing.T) {
	sys := NewMemory()
	sid, err := NewSid(sys, ntAuthority, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer sid.Free()
	view := BorrowedFromHandle(sys, sid.Handle())
	expectInvariantPanic(t, func() { view.Free() })
}

func TestNullHandlesPanic(t *testing.T) {
	sys := NewMemory()
	expectInvariantPanic(t, func() { OwnedFromHandle(sys, 0) })
	expectInvariantPanic(t, func() { BorrowedFromHandle(sys, 0) })
}

func TestUseAfterFreePanics(t *testing.T) {
	sys := NewMemory()
	sid, err := NewSid(sys, ntAuthority, 1)
	if err != nil {
		t.Fatal(err)
	}
	sid.Free()
	expectInvariantPanic(t, func() { sid.SubAuthorityCount() })
}
