package styleid

import (
	"errors"
	"fmt"
	"testing"
)

// The expected values pin the derivation: MD5 the identity, keep the low
// 27 bits of the digest, shift left 5, OR the local index, clear bit 31.
// They were computed outside this package and must never change, or every
// client holding a style id across an upgrade would break.
func TestEncode(t *testing.T) {
	cases := []struct {
		identity string
		local    int
		want     ID
	}{
		{"test-speaker", 0, 439508480},
		{"test-speaker", 1, 439508481},
		{"test-speaker", 31, 439508511},

		// digests whose bit 26 is set exercise the sign-bit clear
		{"a9f8f22d-5d27-4d0e-a3d2-0a6a4c4c8f91", 0, 777744736},
		{"0e73ab32-4a6c-4b41-9b30-2e4e20dd0e91", 31, 1237073855},
		{"d90ee9a1-2a5c-4575-a6b4-1a8898a0c9a6", 1, 1243749441},
		{"3c37db9d-8a39-4a5f-86ac-f7f02d2a5ca4", 0, 889208544},
		{"b1e0d585-6d33-4d6c-9aa4-7b55282e8ff3", 5, 463979237},
	}

	for _, tt := range cases {
		t.Run(fmt.Sprintf("%s/%d", tt.identity, tt.local), func(t *testing.T) {
			got, err := Encode(tt.identity, tt.local)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Encode(%q, %d) = %d, want %d", tt.identity, tt.local, got, tt.want)
			}
			if got < 0 {
				t.Errorf("Encode(%q, %d) = %d, negative", tt.identity, tt.local, got)
			}
			if LocalIndex(got) != tt.local {
				t.Errorf("LocalIndex(%d) = %d, want %d", got, LocalIndex(got), tt.local)
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	for _, identity := range []string{"a", "test-speaker", "3c37db9d-8a39-4a5f-86ac-f7f02d2a5ca4"} {
		for local := 0; local <= MaxLocal; local++ {
			first, err := Encode(identity, local)
			if err != nil {
				t.Fatal(err)
			}
			second, err := Encode(identity, local)
			if err != nil {
				t.Fatal(err)
			}
			if first != second {
				t.Fatalf("Encode(%q, %d) not deterministic: %d != %d", identity, local, first, second)
			}
			if LocalIndex(first) != local {
				t.Fatalf("LocalIndex(Encode(%q, %d)) = %d", identity, local, LocalIndex(first))
			}
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, err := Encode("", 0); !errors.Is(err, ErrEmptyIdentity) {
		t.Errorf("empty identity: got %v, want ErrEmptyIdentity", err)
	}
	if _, err := Encode("speaker", -1); !errors.Is(err, ErrIndexRange) {
		t.Errorf("index -1: got %v, want ErrIndexRange", err)
	}
	if _, err := Encode("speaker", 32); !errors.Is(err, ErrIndexRange) {
		t.Errorf("index 32: got %v, want ErrIndexRange", err)
	}
}

// Distinct identities can share a 27-bit digest prefix, and then their
// styles share identifiers. This is an accepted tradeoff, not a defect:
// the identifier must stay a single int32 for API compatibility, and at
// realistic collection sizes (tens of packages) the birthday bound on 27
// bits keeps the probability negligible. The pair below was mined to
// collide and documents the behavior.
func TestDigestPrefixCollision(t *testing.T) {
	a, err := Encode("00000000-0000-0016-1234-567890abce05", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encode("00000000-0000-0771-1234-567890abd560", 0)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected mined identities to collide, got %d and %d", a, b)
	}
	if a != 1223121600 {
		t.Fatalf("collision pair encodes to %d, want 1223121600", a)
	}
}
