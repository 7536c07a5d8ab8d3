package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSnapshot prefixes snapshot fingerprints. The version suffix leaves
// room for a future algorithm change.
const DomainSnapshot = "rewind/snapshot/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator removes domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the content hash of a snapshot. Two snapshots have
// the same fingerprint iff their canonical encodings are equal.
func Fingerprint(obj Object) (string, error) {
	if obj == nil {
		obj = Object{}
	}
	data, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when the snapshot is known to be valid.
func MustFingerprint(obj Object) string {
	fp, err := Fingerprint(obj)
	if err != nil {
		panic(err)
	}
	return fp
}
