package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RecoveryCodeLength is the number of characters in a single recovery code.
const RecoveryCodeLength = 8

// recoveryAlphabet matches what authenticator recovery codes conventionally
// use: uppercase letters and digits, easy to read back over the phone.
const recoveryAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRecoveryCode returns a single random 8-character uppercase
// alphanumeric recovery code.
func GenerateRecoveryCode() (string, error) {
	code := make([]byte, RecoveryCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(recoveryAlphabet))))
		if err != nil {
			return "", fmt.Errorf("cryptox: failed to generate recovery code: %w", err)
		}
		code[i] = recoveryAlphabet[n.Int64()]
	}
	return string(code), nil
}

// GenerateRecoveryCodes returns count random recovery codes.
func GenerateRecoveryCodes(count int) ([]string, error) {
	codes := make([]string, count)
	for i := range codes {
		code, err := GenerateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}
