package session

import (
	"crypto/rand"
	"math/big"
	"strconv"
)

// CodeLength is the number of digits in a room code.
const CodeLength = 6

const (
	minCode   = 100000
	codeRange = 900000
)

// CodeGenerator returns a candidate room code.
type CodeGenerator func() (string, error)

// RandomCode returns a uniformly random code in 100000-999999.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+minCode, 10), nil
}

// ValidCode reports whether code has the shape of a room code: exactly six
// ASCII digits.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
