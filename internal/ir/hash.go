package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainRevision = "hollow/revision/v1"
	DomainSnapshot = "hollow/snapshot/v1"
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

// RevisionID computes the content-addressed ID of a revision step.
// parent is the ID of the previous step in the log ("" for the first),
// which chains IDs so that identical actions at different points in
// history never collide. payload is the canonical encoding of the step's
// change set.
func RevisionID(parent string, seq int64, action Action, holeID string, payload []byte) string {
	obj := IRObject{
		"parent":  IRString(parent),
		"seq":     IRInt(seq),
		"action":  IRString(action.String()),
		"hole_id": IRString(holeID),
		"payload": IRString(hashWithDomain(DomainSnapshot, payload)),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Only strings and ints above; cannot fail.
		panic(fmt.Sprintf("RevisionID: %v", err))
	}
	return hashWithDomain(DomainRevision, canonical)
}

// SnapshotHash hashes an arbitrary canonical payload (session document,
// graph snapshot) for integrity checks.
func SnapshotHash(payload []byte) string {
	return hashWithDomain(DomainSnapshot, payload)
}
