package otp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var digitsRegex = regexp.MustCompile(`^[0-9]+$`)

// generateCode returns a uniformly random numeric code of the given length,
// left-padded with zeros.
func generateCode(length int) (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// hashCode computes the stored challenge hash. The input is bound to the
// normalized email so the same code issued to two addresses hashes
// differently.
func hashCode(key []byte, email, code string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// normalizeCode strips surrounding whitespace and inner separators users
// paste from email clients ("123 456", "123-456").
func normalizeCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	return code
}

// codeShapeOK reports whether the normalized code has the expected length
// and is all digits.
func codeShapeOK(code string, length int) bool {
	return len(code) == length && digitsRegex.MatchString(code)
}
