package webcrypto

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jinzhu/copier"
)

// OperationName identifies one of the operations a key may participate in.
type OperationName string

// Supported operation names.
const (
	OpEncrypt     OperationName = "encrypt"
	OpDecrypt     OperationName = "decrypt"
	OpSign        OperationName = "sign"
	OpVerify      OperationName = "verify"
	OpDigest      OperationName = "digest"
	OpGenerateKey OperationName = "generateKey"
	OpDeriveKey   OperationName = "deriveKey"
	OpDeriveBits  OperationName = "deriveBits"
	OpImportKey   OperationName = "importKey"
	OpExportKey   OperationName = "exportKey"
	OpWrapKey     OperationName = "wrapKey"
	OpUnwrapKey   OperationName = "unwrapKey"
)

var recognizedOperations = map[OperationName]bool{
	OpEncrypt:     true,
	OpDecrypt:     true,
	OpSign:        true,
	OpVerify:      true,
	OpDigest:      true,
	OpGenerateKey: true,
	OpDeriveKey:   true,
	OpDeriveBits:  true,
	OpImportKey:   true,
	OpExportKey:   true,
	OpWrapKey:     true,
	OpUnwrapKey:   true,
}

// KeyFormat identifies a key import/export format.
type KeyFormat string

// Supported key formats. FormatJWK is the portable interchange format;
// the others carry raw byte material.
const (
	FormatRaw   KeyFormat = "raw"
	FormatPKCS8 KeyFormat = "pkcs8"
	FormatSPKI  KeyFormat = "spki"
	FormatJWK   KeyFormat = "jwk"
)

// IsRawBytes returns true for formats whose key data is a raw byte sequence.
func (f KeyFormat) IsRawBytes() bool {
	return f == FormatRaw || f == FormatPKCS8 || f == FormatSPKI
}

// Algorithm is a caller-supplied algorithm descriptor: a name plus
// loosely-typed, algorithm-specific parameters. Descriptors are never used
// directly; Registry.Normalize resolves them into a NormalizedAlgorithm.
type Algorithm struct {
	Name string `json:"name" yaml:"name"`

	// Params carries algorithm-specific fields, such as "length", "iv",
	// or "hash". Providers read the fields they recognize during
	// normalization.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Alg is shorthand for a descriptor without parameters.
func Alg(name string) Algorithm {
	return Algorithm{Name: name}
}

// clone returns an independent deep copy of the descriptor, so that provider
// normalization never observes caller mutations.
func (a Algorithm) clone() (Algorithm, error) {
	var cp Algorithm
	err := copier.CopyWithOption(&cp, &a, copier.Option{DeepCopy: true})
	if err != nil {
		return Algorithm{}, errors.WithMessage(err, "failed to copy descriptor")
	}
	return cp, nil
}

// IntParam returns a named integer parameter. YAML and JSON decoding may
// produce int, int64 or float64; all are accepted.
func (a Algorithm) IntParam(name string) (int, bool) {
	switch v := a.Params[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// StringParam returns a named string parameter.
func (a Algorithm) StringParam(name string) (string, bool) {
	v, ok := a.Params[name].(string)
	return v, ok
}

// BytesParam returns a named byte-slice parameter.
func (a Algorithm) BytesParam(name string) ([]byte, bool) {
	v, ok := a.Params[name].([]byte)
	return v, ok
}

// NormalizedAlgorithm is the canonical parameter record resolved from a
// descriptor for a specific operation. Instances are produced only by
// Registry.Normalize, which delegates to the registered provider; callers
// must not construct them ad hoc.
type NormalizedAlgorithm struct {
	// Name is the provider's canonical algorithm name.
	Name string

	// Length is the key length in bits, when the algorithm defines one.
	Length int

	// IV is the initialization vector for AEAD-style ciphers.
	IV []byte

	// Hash is the digest algorithm choice, when the algorithm defines one.
	Hash string
}

func canonicalAlgName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
