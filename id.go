package voynich

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// contentIDLen is the hex prefix length of the content hash used as the
// document identifier. 64 bits of hash is ample for any realistic corpus;
// collisions are not handled.
const contentIDLen = 16

// ContentID derives the stable document identifier from raw content bytes:
// hex SHA-256 truncated to 16 characters. Identical bytes always map to the
// same id regardless of filename or metadata.
func ContentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:contentIDLen]
}

// ChunkKey returns the store key for a chunk ordinal. Keys are zero-padded
// so lexicographic key order matches chunk index order in listings.
func ChunkKey(index int) string {
	return fmt.Sprintf("chunk_%05d", index)
}

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used for request correlation ids, not document identity.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUnix returns current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
