package membership

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	inviteAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// InviteCodeLength is the number of characters in an invite code.
	InviteCodeLength = 6
)

// CodeGenerator produces candidate invite codes.
type CodeGenerator func() (string, error)

// GenerateInviteCode returns a random six-character upper-case base-36 code.
func GenerateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteAlphabet)))
	var b strings.Builder
	b.Grow(InviteCodeLength)
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeInviteCode trims and upper-cases user input.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidInviteCode reports whether code has the generated shape.
func ValidInviteCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(inviteAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
