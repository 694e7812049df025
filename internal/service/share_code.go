package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	ShareCodeLength   = 6
	// No 0/O or 1/I so codes survive being read aloud or copied by hand.
	shareCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

// maxShareCodeAttempts bounds regeneration after unique index collisions.
const maxShareCodeAttempts = 5

var alphabetSize = big.NewInt(int64(len(shareCodeAlphabet)))

// NewShareCode draws a random upper-case code from shareCodeAlphabet.
func NewShareCode() (string, error) {
	var b strings.Builder
	b.Grow(ShareCodeLength)
	for i := 0; i < ShareCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(shareCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeShareCode trims input and upper-cases it to match generated codes.
func NormalizeShareCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
