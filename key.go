package webcrypto

import (
	"github.com/cockroachdb/errors"
)

// KeyType classifies key material.
type KeyType string

// Key types. Secret and private keys are restricted: they must carry at
// least one usage after creation.
const (
	KeyTypeSecret  KeyType = "secret"
	KeyTypePrivate KeyType = "private"
	KeyTypePublic  KeyType = "public"
)

// Restricted returns true for key types that require a non-empty usage set.
func (t KeyType) Restricted() bool {
	return t == KeyTypeSecret || t == KeyTypePrivate
}

// CryptoKey is a handle to key material held by a provider. Instances are
// created by GenerateKey and ImportKey and are immutable afterwards; the
// dispatcher assigns Usages and Extractable exactly once, before the key
// becomes visible to the caller.
type CryptoKey struct {
	Type        KeyType
	Extractable bool
	Algorithm   NormalizedAlgorithm
	Usages      []OperationName

	// Material is the provider-owned key material. It is opaque to this
	// layer and must never leave provider calls except through ExportKey.
	Material any
}

// HasUsage reports whether the key is authorized for the operation.
func (k *CryptoKey) HasUsage(op OperationName) bool {
	for _, u := range k.Usages {
		if u == op {
			return true
		}
	}
	return false
}

// CryptoKeyPair holds the two halves of an asymmetric key. The private half
// must carry at least one usage; the public half may have none.
type CryptoKeyPair struct {
	PublicKey  *CryptoKey
	PrivateKey *CryptoKey
}

// GenerateKeyResult holds the outcome of a key generation: either a single
// key or a key pair, never both.
type GenerateKeyResult struct {
	Key  *CryptoKey
	Pair *CryptoKeyPair
}

// KeyData is the loosely-typed key material supplied to ImportKey: raw bytes
// for the byte formats, or an interchange record for FormatJWK. Raw JSON
// bytes are accepted for FormatJWK and coerced into a record.
type KeyData struct {
	Raw    []byte
	Record *KeyInterchangeRecord
}

// ExportedKey is the outcome of ExportKey: raw bytes for the byte formats,
// or an interchange record for FormatJWK.
type ExportedKey struct {
	Raw    []byte
	Record *KeyInterchangeRecord
}

// NormalizeUsages deduplicates the usage list and drops names outside the
// recognized operation set, preserving first-occurrence order.
func NormalizeUsages(usages []OperationName) []OperationName {
	out := make([]OperationName, 0, len(usages))
	seen := make(map[OperationName]bool, len(usages))
	for _, u := range usages {
		if !recognizedOperations[u] || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// RequireUsage fails unless the key is authorized for the operation.
func RequireUsage(key *CryptoKey, op OperationName) error {
	if !key.HasUsage(op) {
		return accessViolation("key does not support the %q operation", op)
	}
	return nil
}

// RequireNonEmptyUsages enforces the creation invariant for restricted-type
// keys: secret and private keys must carry at least one usage. It is invoked
// exactly once, right after GenerateKey or ImportKey produces a key, before
// the key is returned to the caller.
func RequireNonEmptyUsages(key *CryptoKey) error {
	if key.Type.Restricted() && len(key.Usages) == 0 {
		return errors.WithMessagef(ErrEmptyUsages, "%s key", key.Type)
	}
	return nil
}

// RequireNonEmptyPairUsages enforces the pair validity invariant: the
// private half must carry at least one usage.
func RequireNonEmptyPairUsages(pair *CryptoKeyPair) error {
	if pair.PrivateKey == nil || len(pair.PrivateKey.Usages) == 0 {
		return errors.WithMessage(ErrEmptyUsages, "private key")
	}
	return nil
}
