package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// OTPCodeLength is the number of digits in an emailed passcode.
const OTPCodeLength = 6

// GenerateNumericCode returns a uniformly random numeric string of the given length.
// Leading zeros are kept, so every value in [0, 10^length) is possible.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 || length > 18 {
		return "", fmt.Errorf("code length must be between 1 and 18")
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsNumericCode reports whether value consists of exactly length ASCII digits.
func IsNumericCode(value string, length int) bool {
	if len(value) != length {
		return false
	}
	return strings.Trim(value, "0123456789") == ""
}
