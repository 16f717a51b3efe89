package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix leaves room for algorithm migration.
const (
	DomainAudit    = "sigfuse/audit/v1"
	DomainSnapshot = "sigfuse/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AuditHash computes the chain hash of an audit entry. The entry's own Hash
// field is excluded; PrevHash is included, which links the chain.
func AuditHash(e AuditEntry) (string, error) {
	canonical, err := MarshalCanonical(e.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("AuditHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAudit, canonical), nil
}

// Fingerprint hashes the JSON form of the snapshot under the snapshot
// domain. encoding/json emits struct fields in declaration order and map keys
// sorted, so equal snapshots always fingerprint identically.
func (s Snapshot) Fingerprint() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}
