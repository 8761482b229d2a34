// Package idgen generates the content-addressed identifiers used across the
// event log and graph, plus the AA-BB short-code aliases users type.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EventIDLength is the hash portion of an event id ("ev_" + 10 chars).
const EventIDLength = 10

// NodeIDLength is the hash portion of a node id ("<type>_" + 8 chars).
const NodeIDLength = 8

// EncodeBase36 converts a byte slice to a base36 string of the given length.
// Base36 (0-9, a-z) packs more information per character than hex, which keeps
// ids short enough to say out loud.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	// Keep the least significant digits when over length.
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// NewEventID creates a content-addressed id for an event from its timestamp,
// type, and payload. The same inputs always produce the same id, so replaying
// a journal regenerates identical ids. The nonce exists only to escape a
// genuine hash collision at append time.
func NewEventID(createdAt time.Time, eventType string, payload []byte, nonce int) string {
	payloadHash := sha256.Sum256(payload)
	content := fmt.Sprintf("%s|%d|%x|%d", eventType, createdAt.UTC().UnixNano(), payloadHash, nonce)
	hash := sha256.Sum256([]byte(content))
	return "ev_" + EncodeBase36(hash[:7], EventIDLength)
}

// NodeID derives a node id from its type and the confirming event. Node ids
// carry their type as a prefix (decision_8a3f2k1p) so a bare id is readable
// and so the short-code alias of two node types can never collide.
func NodeID(nodeType string, originEventID string) string {
	hash := sha256.Sum256([]byte(nodeType + "|" + originEventID))
	return nodeType + "_" + EncodeBase36(hash[:6], NodeIDLength)
}
