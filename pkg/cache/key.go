package cache

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// DefaultKeyPrefix is the key prefix used when none is configured.
const DefaultKeyPrefix = "ais"

// versionSegment separates namespace version counters from cached entries.
const versionSegment = "version"

// hashLen is the length of the hex parameter hash in entry keys.
const hashLen = 16

// KeyBuilder derives the keys used in both tiers.
//
// Formats:
//
//	prefix:ns:v<version>:<16 hex chars>   entry keys
//	prefix:version:ns                     namespace version counters
//	prefix:<key>                          raw keys
type KeyBuilder struct {
	Prefix string
}

// NewKeyBuilder returns a builder for prefix, falling back to DefaultKeyPrefix.
func NewKeyBuilder(prefix string) KeyBuilder {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeyBuilder{Prefix: prefix}
}

// Entry returns the derived key for params in namespace at version.
func (b KeyBuilder) Entry(namespace string, version int64, params any) (string, error) {
	hash, err := HashParams(params)
	if err != nil {
		return "", err
	}
	return b.Prefix + ":" + namespace + ":v" + strconv.FormatInt(version, 10) + ":" + hash, nil
}

// Version returns the key of the version counter for namespace.
func (b KeyBuilder) Version(namespace string) string {
	return b.Prefix + ":" + versionSegment + ":" + namespace
}

// Raw returns key under the prefix without namespace, version or hashing.
func (b KeyBuilder) Raw(key string) string {
	return b.Prefix + ":" + key
}

// NamespacePattern matches every entry of namespace regardless of version.
// It requires the version segment and a full hash so that raw keys sharing
// the namespace as their first segment are not matched.
func (b KeyBuilder) NamespacePattern(namespace string) string {
	return b.Prefix + ":" + namespace + ":v*:" + strings.Repeat("?", hashLen)
}

// AllPattern matches every key owned by this prefix.
func (b KeyBuilder) AllPattern() string {
	return b.Prefix + ":*"
}

// HashParams returns the 16 hex character xxhash64 of the canonical JSON
// form of params.
func HashParams(params any) (string, error) {
	data, err := canonicalJSON(params)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}

// canonicalJSON encodes params with top-level object keys sorted. Nested
// objects keep the order their encoder produced, so two values that differ
// only in nested key order may hash differently.
func canonicalJSON(params any) ([]byte, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if len(data) == 0 || data[0] != '{' {
		return data, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("canonicalize params: %w", err)
	}
	// encoding/json writes map keys in sorted order.
	return json.Marshal(fields)
}
