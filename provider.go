package webcrypto

import (
	"context"
)

// AlgorithmCapability declares one algorithm a provider serves and the
// exact set of operations it implements for that algorithm. Capabilities
// are resolved once at registry construction; dispatch branches on them and
// never probes providers for optional behavior at call time.
type AlgorithmCapability struct {
	Algorithm  string
	Operations []OperationName
}

// Supports reports whether the capability includes the operation.
func (c AlgorithmCapability) Supports(op OperationName) bool {
	for _, o := range c.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Provider implements the cryptographic operations for one or more
// algorithms. The dispatcher invokes only the operations declared in the
// provider's capabilities; the embeddable UnimplementedProvider supplies
// failing stubs for the rest.
type Provider interface {
	// Name returns the provider name, used in logs and configuration.
	Name() string

	// Algorithms declares the algorithms this provider serves.
	Algorithms() []AlgorithmCapability

	// Normalize resolves a descriptor into canonical parameters for the
	// operation, validating algorithm-specific fields.
	Normalize(op OperationName, alg Algorithm) (NormalizedAlgorithm, error)

	Encrypt(ctx context.Context, params NormalizedAlgorithm, key *CryptoKey, data []byte) ([]byte, error)
	Decrypt(ctx context.Context, params NormalizedAlgorithm, key *CryptoKey, data []byte) ([]byte, error)
	Sign(ctx context.Context, key *CryptoKey, data []byte) ([]byte, error)
	Verify(ctx context.Context, key *CryptoKey, signature, data []byte) (bool, error)
	Digest(ctx context.Context, params NormalizedAlgorithm, data []byte) ([]byte, error)
	GenerateKey(ctx context.Context, params NormalizedAlgorithm, extractable bool, usages []OperationName) (*GenerateKeyResult, error)
	ImportKey(ctx context.Context, format KeyFormat, data KeyData, params NormalizedAlgorithm, extractable bool, usages []OperationName) (*CryptoKey, error)
	ExportKey(ctx context.Context, format KeyFormat, key *CryptoKey) (*ExportedKey, error)

	// WrapKey encrypts already-exported key bytes under the wrapping key.
	// Providers without a dedicated wrap routine leave it unimplemented;
	// the dispatcher falls back to Encrypt.
	WrapKey(ctx context.Context, params NormalizedAlgorithm, wrappingKey *CryptoKey, data []byte) ([]byte, error)
}

// UnimplementedProvider returns ErrUnsupportedAlgorithm from every
// operation. Embed it in providers that serve only a subset of operations.
type UnimplementedProvider struct{}

// Encrypt implements Provider.
func (UnimplementedProvider) Encrypt(_ context.Context, params NormalizedAlgorithm, _ *CryptoKey, _ []byte) ([]byte, error) {
	return nil, unsupportedAlgorithm(params.Name)
}

// Decrypt implements Provider.
func (UnimplementedProvider) Decrypt(_ context.Context, params NormalizedAlgorithm, _ *CryptoKey, _ []byte) ([]byte, error) {
	return nil, unsupportedAlgorithm(params.Name)
}

// Sign implements Provider.
func (UnimplementedProvider) Sign(_ context.Context, key *CryptoKey, _ []byte) ([]byte, error) {
	return nil, unsupportedAlgorithm(key.Algorithm.Name)
}

// Verify implements Provider.
func (UnimplementedProvider) Verify(_ context.Context, key *CryptoKey, _, _ []byte) (bool, error) {
	return false, unsupportedAlgorithm(key.Algorithm.Name)
}

// Digest implements Provider.
func (UnimplementedProvider) Digest(_ context.Context, params NormalizedAlgorithm, _ []byte) ([]byte, error) {
	return nil, unsupportedAlgorithm(params.Name)
}

// GenerateKey implements Provider.
func (UnimplementedProvider) GenerateKey(_ context.Context, params NormalizedAlgorithm, _ bool, _ []OperationName) (*GenerateKeyResult, error) {
	return nil, unsupportedAlgorithm(params.Name)
}

// ImportKey implements Provider.
func (UnimplementedProvider) ImportKey(_ context.Context, _ KeyFormat, _ KeyData, params NormalizedAlgorithm, _ bool, _ []OperationName) (*CryptoKey, error) {
	return nil, unsupportedAlgorithm(params.Name)
}

// ExportKey implements Provider.
func (UnimplementedProvider) ExportKey(_ context.Context, _ KeyFormat, key *CryptoKey) (*ExportedKey, error) {
	return nil, unsupportedAlgorithm(key.Algorithm.Name)
}

// WrapKey implements Provider.
func (UnimplementedProvider) WrapKey(_ context.Context, params NormalizedAlgorithm, _ *CryptoKey, _ []byte) ([]byte, error) {
	return nil, unsupportedAlgorithm(params.Name)
}
