package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
)

const alnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewUserToken mints a user bearer: 64 random bytes, base64-encoded.
func NewUserToken() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate user token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// NewOAuthToken mints an OAuth access token: 128 alphanumeric chars.
func NewOAuthToken() (string, error) {
	return randAlnum(128)
}

// NewClientSecret mints an OAuth application secret: 64 alphanumeric
// chars.
func NewClientSecret() (string, error) {
	return randAlnum(64)
}

// NewRegistrationCode mints a 6-char alphanumeric invite code.
func NewRegistrationCode() (string, error) {
	return randAlnum(6)
}

// NewOAuthCode mints an 8-digit decimal authorization code in
// [10000000, 99999999].
func NewOAuthCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate oauth code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+10000000), nil
}

func randAlnum(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alnum))))
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %w", err)
		}
		buf[i] = alnum[n.Int64()]
	}
	return string(buf), nil
}

// SecureCompare performs a constant-time comparison of two secrets so
// response timing does not leak prefix matches.
func SecureCompare(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
