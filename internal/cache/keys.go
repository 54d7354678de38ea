package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key builds a deterministic cache key for one logical query: entity,
// operation, and a hash of the arguments. json.Marshal emits map keys in
// sorted order and quotes values, so equal argument sets always produce
// the same key and no value can masquerade as extra name/value pairs.
func Key(entity, op string, args map[string]any) string {
	// Arguments come from decoded JSON and always marshal.
	canonical, _ := json.Marshal(args)
	sum := sha256.Sum256(canonical)
	return entity + ":" + op + ":" + hex.EncodeToString(sum[:8])
}

// EntityPrefix returns the key prefix covering every cached read for an
// entity type, for prefix invalidation after mutations.
func EntityPrefix(entity string) string {
	return entity + ":"
}
