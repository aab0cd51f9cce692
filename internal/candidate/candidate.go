// Package candidate issues the anonymous codes candidates use to sign in.
package candidate

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a candidate code.
const CodeLength = 10

var (
	codeMin  = big.NewInt(1_000_000_000)
	codeSpan = big.NewInt(9_000_000_000)
)

// Generate draws a code uniformly from [10^9, 10^10). Uniqueness is the
// caller's concern.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("draw candidate code: %w", err)
	}
	return n.Add(n, codeMin).String(), nil
}

// Valid reports whether code has the shape of an issued candidate code.
func Valid(code string) bool {
	if len(code) != CodeLength || code[0] == '0' {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
