package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// KeyPrefix and EnrollmentPrefix are the stable prefixes every generated
// credential begins with, per the persisted-format contract: raw key =
// prefix + 48 url-safe base64 chars.
const (
	KeyPrefix        = "nbl_"
	EnrollmentPrefix = "nbe_"
	rawSuffixBytes   = 36 // 36 raw bytes -> 48 base64 chars
	// LookupPrefixLen is how many leading characters of a raw credential
	// are stored unhashed for the O(1) by-prefix store lookup.
	LookupPrefixLen = 8
	MinCredentialLen = 8
)

// argon2Params are tuned per OWASP's current minimum recommendation for
// Argon2id: time=1, memory=64MB, parallelism=4, 32-byte output.
var argon2Params = struct {
	time, memory uint32
	threads      uint8
	keyLen       uint32
	saltLen      int
}{time: 1, memory: 64 * 1024, threads: 4, keyLen: 32, saltLen: 16}

// GenerateRawKey produces a new CSPRNG-backed credential with the given
// prefix, e.g. GenerateRawKey(KeyPrefix) or GenerateRawKey(EnrollmentPrefix).
func GenerateRawKey(prefix string) (string, error) {
	buf := make([]byte, rawSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate key: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashCredential returns an Argon2id hash of raw suitable for at-rest
// storage, encoded as "salt_hex:hash_hex" so the salt travels with the hash
// without a separate column.
func HashCredential(raw string) (string, error) {
	salt := make([]byte, argon2Params.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(raw), salt, argon2Params.time, argon2Params.memory, argon2Params.threads, argon2Params.keyLen)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(sum), nil
}

// VerifyCredential reports whether raw matches encodedHash, using a
// constant-time comparison of the computed digest against the stored one.
func VerifyCredential(raw, encodedHash string) bool {
	parts := strings.SplitN(encodedHash, ":", 2)
	if len(parts) != 2 {
		return false
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(raw), salt, argon2Params.time, argon2Params.memory, argon2Params.threads, argon2Params.keyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// LookupPrefix returns the first LookupPrefixLen characters of raw, the
// value stored unhashed for the store's by-prefix index.
func LookupPrefix(raw string) string {
	if len(raw) < LookupPrefixLen {
		return raw
	}
	return raw[:LookupPrefixLen]
}
