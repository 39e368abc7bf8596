// Package canonicalize produces RFC 8785 (JSON Canonicalization Scheme)
// serializations of entity, knowledge, and relationship payloads so the
// approval engine can hash and diff them deterministically.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// v is marshaled with the standard encoder first so struct tags and
// custom MarshalJSON methods are respected, then transformed into
// canonical form (sorted keys, no insignificant whitespace, fixed
// number formatting) by gowebpki/jcs.
func JCS(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return canonical, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the SHA-256 hex digest of raw bytes.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// JCSString returns the canonical form of v as a string.
func JCSString(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Equal reports whether a and b canonicalize to the same bytes, which
// is the definition of "identical metadata" the approval engine uses
// when deciding whether a mutation needs a diff at all.
func Equal(a, b interface{}) (bool, error) {
	ca, err := JCS(a)
	if err != nil {
		return false, err
	}
	cb, err := JCS(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}
