package webcrypto

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto/metricskey"
	"github.com/effective-security/webcrypto/promise"
	"github.com/effective-security/xlog"
)

// SubtleCrypto dispatches cryptographic requests to registered providers.
// Each operation normalizes the algorithm descriptor, validates key usage
// and compatibility, and only then invokes the provider. Validation
// failures settle the returned promise before any provider code runs;
// provider errors are forwarded unchanged.
type SubtleCrypto struct {
	registry *Registry
}

// NewSubtleCrypto returns a dispatcher over the registry.
func NewSubtleCrypto(r *Registry) *SubtleCrypto {
	return &SubtleCrypto{registry: r}
}

// Registry returns the registry the dispatcher was built with.
func (s *SubtleCrypto) Registry() *Registry {
	return s.registry
}

// checkKeyAlgorithm fails unless the normalized algorithm matches the key's.
func checkKeyAlgorithm(params NormalizedAlgorithm, key *CryptoKey) error {
	if params.Name != key.Algorithm.Name {
		return accessViolation("algorithm %q does not match key algorithm %q",
			params.Name, key.Algorithm.Name)
	}
	return nil
}

// cipherOp runs the shared validation sequence for encrypt, decrypt, sign
// and verify: normalize, match key algorithm, require usage. The sequencing
// is a correctness requirement; the provider must never observe a call that
// failed validation.
func (s *SubtleCrypto) cipherOp(op OperationName, alg Algorithm, key *CryptoKey) (NormalizedAlgorithm, Provider, error) {
	params, prov, err := s.registry.resolve(op, alg)
	if err != nil {
		return NormalizedAlgorithm{}, nil, err
	}
	if err := checkKeyAlgorithm(params, key); err != nil {
		return NormalizedAlgorithm{}, nil, err
	}
	if err := RequireUsage(key, op); err != nil {
		return NormalizedAlgorithm{}, nil, err
	}
	return params, prov, nil
}

// Encrypt encrypts data with the key under the given algorithm.
func (s *SubtleCrypto) Encrypt(ctx context.Context, alg Algorithm, key *CryptoKey, data []byte) *promise.Promise[[]byte] {
	params, prov, err := s.cipherOp(OpEncrypt, alg, key)
	if err != nil {
		return promise.Reject[[]byte](err)
	}
	buf := cloneBytes(data)
	return promise.Go(func() ([]byte, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "encrypt")
		return prov.Encrypt(ctx, params, key, buf)
	})
}

// Decrypt decrypts data with the key under the given algorithm.
func (s *SubtleCrypto) Decrypt(ctx context.Context, alg Algorithm, key *CryptoKey, data []byte) *promise.Promise[[]byte] {
	params, prov, err := s.cipherOp(OpDecrypt, alg, key)
	if err != nil {
		return promise.Reject[[]byte](err)
	}
	buf := cloneBytes(data)
	return promise.Go(func() ([]byte, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "decrypt")
		return prov.Decrypt(ctx, params, key, buf)
	})
}

// Sign produces a signature over data with the key.
func (s *SubtleCrypto) Sign(ctx context.Context, alg Algorithm, key *CryptoKey, data []byte) *promise.Promise[[]byte] {
	params, prov, err := s.cipherOp(OpSign, alg, key)
	if err != nil {
		return promise.Reject[[]byte](err)
	}
	buf := cloneBytes(data)
	return promise.Go(func() ([]byte, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "sign")
		return prov.Sign(ctx, key, buf)
	})
}

// Verify checks a signature over data with the key.
func (s *SubtleCrypto) Verify(ctx context.Context, alg Algorithm, key *CryptoKey, signature, data []byte) *promise.Promise[bool] {
	params, prov, err := s.cipherOp(OpVerify, alg, key)
	if err != nil {
		return promise.Reject[bool](err)
	}
	sig := cloneBytes(signature)
	buf := cloneBytes(data)
	return promise.Go(func() (bool, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "verify")
		return prov.Verify(ctx, key, sig, buf)
	})
}

// Digest computes a digest of data. No key is involved, so no usage check.
func (s *SubtleCrypto) Digest(ctx context.Context, alg Algorithm, data []byte) *promise.Promise[[]byte] {
	params, prov, err := s.registry.resolve(OpDigest, alg)
	if err != nil {
		return promise.Reject[[]byte](err)
	}
	buf := cloneBytes(data)
	return promise.Go(func() ([]byte, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "digest")
		return prov.Digest(ctx, params, buf)
	})
}

// GenerateKey generates a key or a key pair. Secret and private keys must
// end up with a non-empty usage set, otherwise the promise rejects with
// ErrEmptyUsages and no key is returned.
func (s *SubtleCrypto) GenerateKey(ctx context.Context, alg Algorithm, extractable bool, usages []OperationName) *promise.Promise[*GenerateKeyResult] {
	params, prov, err := s.registry.resolve(OpGenerateKey, alg)
	if err != nil {
		return promise.Reject[*GenerateKeyResult](err)
	}
	normalizedUsages := NormalizeUsages(usages)
	return promise.Go(func() (*GenerateKeyResult, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "generateKey")

		res, err := prov.GenerateKey(ctx, params, extractable, normalizedUsages)
		if err != nil {
			return nil, err
		}
		switch {
		case res == nil || (res.Key == nil && res.Pair == nil):
			return nil, errors.Errorf("provider %q returned no key", prov.Name())
		case res.Key != nil:
			if err := RequireNonEmptyUsages(res.Key); err != nil {
				return nil, err
			}
		default:
			if err := RequireNonEmptyPairUsages(res.Pair); err != nil {
				return nil, err
			}
		}
		return res, nil
	})
}

// ImportKey imports key material in the given format. The caller-supplied
// usages and extractable flag are assigned to the resulting key exactly
// once, before the key becomes visible to the caller.
func (s *SubtleCrypto) ImportKey(ctx context.Context, format KeyFormat, data KeyData, alg Algorithm, extractable bool, usages []OperationName) *promise.Promise[*CryptoKey] {
	params, prov, err := s.registry.resolve(OpImportKey, alg)
	if err != nil {
		return promise.Reject[*CryptoKey](err)
	}

	in, err := coerceKeyData(format, data)
	if err != nil {
		return promise.Reject[*CryptoKey](err)
	}

	normalizedUsages := NormalizeUsages(usages)
	return promise.Go(func() (*CryptoKey, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), params.Name, "importKey")

		key, err := prov.ImportKey(ctx, format, in, params, extractable, normalizedUsages)
		if err != nil {
			return nil, err
		}
		if key.Type.Restricted() && len(normalizedUsages) == 0 {
			return nil, errors.WithMessagef(ErrEmptyUsages, "%s key", key.Type)
		}
		key.Extractable = extractable
		key.Usages = normalizedUsages
		return key, nil
	})
}

// coerceKeyData validates the shape of key data against the declared format.
// Raw-byte formats must not carry an interchange record; FormatJWK accepts a
// record directly or JSON bytes coerced into one.
func coerceKeyData(format KeyFormat, data KeyData) (KeyData, error) {
	if format.IsRawBytes() {
		if data.Record != nil {
			return KeyData{}, malformedInput("format %q requires raw bytes, not an interchange record", format)
		}
		return KeyData{Raw: cloneBytes(data.Raw)}, nil
	}
	if format != FormatJWK {
		return KeyData{}, malformedInput("unknown key format %q", format)
	}
	if data.Record != nil {
		if err := data.Record.Validate(); err != nil {
			return KeyData{}, err
		}
		return KeyData{Record: data.Record}, nil
	}
	rec, err := ParseKeyInterchangeRecord(data.Raw)
	if err != nil {
		return KeyData{}, err
	}
	return KeyData{Record: rec}, nil
}

// ExportKey exports the key in the given format. The key's algorithm must
// have a registered export capability and the key must be extractable.
func (s *SubtleCrypto) ExportKey(ctx context.Context, format KeyFormat, key *CryptoKey) *promise.Promise[*ExportedKey] {
	prov, _, err := s.exportable(key)
	if err != nil {
		return promise.Reject[*ExportedKey](err)
	}
	return promise.Go(func() (*ExportedKey, error) {
		defer metricskey.PerfSubtleOperation.MeasureSince(time.Now(), key.Algorithm.Name, "exportKey")
		return prov.ExportKey(ctx, format, key)
	})
}

// exportable checks the export preconditions in order: registered export
// capability first, then extractability.
func (s *SubtleCrypto) exportable(key *CryptoKey) (Provider, AlgorithmCapability, error) {
	prov, ac, ok := s.registry.Capability(OpExportKey, key.Algorithm.Name)
	if !ok {
		return nil, AlgorithmCapability{}, unsupportedAlgorithm(key.Algorithm.Name)
	}
	if !key.Extractable {
		return nil, AlgorithmCapability{}, accessViolation("key is not extractable")
	}
	return prov, ac, nil
}

// UnwrapKey is not implemented.
func (s *SubtleCrypto) UnwrapKey(_ context.Context, _ KeyFormat, _ []byte, _ *CryptoKey, _ Algorithm, _ Algorithm, _ bool, _ []OperationName) *promise.Promise[*CryptoKey] {
	logger.KV(xlog.DEBUG, "op", "unwrapKey", "status", "not_implemented")
	return promise.Reject[*CryptoKey](errors.WithMessage(ErrNotImplemented, "unwrapKey"))
}

// DeriveKey is not implemented.
func (s *SubtleCrypto) DeriveKey(_ context.Context, _ Algorithm, _ *CryptoKey, _ Algorithm, _ bool, _ []OperationName) *promise.Promise[*CryptoKey] {
	return promise.Reject[*CryptoKey](errors.WithMessage(ErrNotImplemented, "deriveKey"))
}

// DeriveBits is not implemented.
func (s *SubtleCrypto) DeriveBits(_ context.Context, _ Algorithm, _ *CryptoKey, _ int) *promise.Promise[[]byte] {
	return promise.Reject[[]byte](errors.WithMessage(ErrNotImplemented, "deriveBits"))
}

// cloneBytes returns an independent copy, so in-flight data cannot be
// mutated by the caller.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
