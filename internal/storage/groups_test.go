package storage

import (
	"strings"
	"testing"
)

func TestGenerateInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := generateInviteCode()
		if err != nil {
			t.Fatalf("generateInviteCode() error = %v", err)
		}
		if len(code) != inviteCodeLength {
			t.Fatalf("code %q length got = %d, want = %d", code, len(code), inviteCodeLength)
		}
		for _, ch := range code {
			if !strings.ContainsRune(inviteCodeAlphabet, ch) {
				t.Fatalf("code %q contains %q outside the alphabet", code, ch)
			}
		}
		seen[code] = true
	}
	// 36^6 codes; 100 draws colliding down to a handful would mean broken
	// randomness.
	if len(seen) < 90 {
		t.Errorf("only %d distinct codes out of 100", len(seen))
	}
}
