package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainChange = "morph/change/v1"
	DomainValue  = "morph/value/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ChangeID computes the content-addressed ID of a journaled change.
// encoded is the canonical encoding of the change itself; stream and seq
// place it in its journal so identical edits at different points get
// distinct IDs.
func ChangeID(stream string, seq int64, encoded IRValue) (string, error) {
	obj := IRObject{
		"stream": IRString(stream),
		"seq":    IRInt(seq),
		"change": encoded,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ChangeID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainChange, canonical), nil
}

// ValueHash computes a stable digest of an encoded value. Two values hash
// equal iff their canonical forms are byte-identical.
func ValueHash(v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// MustValueHash is like ValueHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustValueHash(v IRValue) string {
	h, err := ValueHash(v)
	if err != nil {
		panic(err)
	}
	return h
}
