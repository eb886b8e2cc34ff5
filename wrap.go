package webcrypto

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto/metricskey"
	"github.com/effective-security/webcrypto/promise"
)

// WrapKey exports a key and encrypts the exported bytes under the wrapping
// key. The wrap algorithm is normalized against the wrapKey operation first
// and falls back to encrypt for algorithms that reuse their cipher for
// wrapping; when both fail, the second normalization's error is returned.
//
// All validation runs before the export: wrapping-key algorithm match,
// wrapKey usage on the wrapping key, export capability for the target key's
// algorithm, and target-key extractability.
func (s *SubtleCrypto) WrapKey(ctx context.Context, format KeyFormat, key *CryptoKey, wrappingKey *CryptoKey, wrapAlg Algorithm) *promise.Promise[[]byte] {
	params, prov, wrapEntry, err := s.resolveWrap(wrapAlg)
	if err != nil {
		return promise.Reject[[]byte](err)
	}
	if err := checkKeyAlgorithm(params, wrappingKey); err != nil {
		return promise.Reject[[]byte](err)
	}
	if err := RequireUsage(wrappingKey, OpWrapKey); err != nil {
		return promise.Reject[[]byte](err)
	}
	expProv, _, err := s.exportable(key)
	if err != nil {
		return promise.Reject[[]byte](err)
	}

	return promise.Go(func() ([]byte, error) {
		defer metricskey.PerfWrapOperation.MeasureSince(time.Now(), params.Name, string(format))

		exported, err := expProv.ExportKey(ctx, format, key)
		if err != nil {
			return nil, err
		}
		plaintext, err := serializeExported(format, exported)
		if err != nil {
			return nil, err
		}
		switch {
		case wrapEntry.Supports(OpWrapKey):
			return prov.WrapKey(ctx, params, wrappingKey, plaintext)
		case wrapEntry.Supports(OpEncrypt):
			return prov.Encrypt(ctx, params, wrappingKey, plaintext)
		default:
			return nil, unsupportedAlgorithm(params.Name)
		}
	})
}

// resolveWrap normalizes the wrap algorithm, preferring a dedicated wrapKey
// registration and falling back to encrypt for algorithms that are not
// registered for wrapping.
func (s *SubtleCrypto) resolveWrap(alg Algorithm) (NormalizedAlgorithm, Provider, AlgorithmCapability, error) {
	params, prov, err := s.registry.resolve(OpWrapKey, alg)
	if err == nil {
		_, ac, _ := s.registry.Capability(OpWrapKey, params.Name)
		return params, prov, ac, nil
	}
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		return NormalizedAlgorithm{}, nil, AlgorithmCapability{}, err
	}

	params, prov, err = s.registry.resolve(OpEncrypt, alg)
	if err != nil {
		return NormalizedAlgorithm{}, nil, AlgorithmCapability{}, err
	}
	_, ac, _ := s.registry.Capability(OpEncrypt, params.Name)
	return params, prov, ac, nil
}

// serializeExported flattens an export result to bytes: raw formats pass
// through unchanged, interchange records serialize to canonical JSON.
func serializeExported(format KeyFormat, exported *ExportedKey) ([]byte, error) {
	if format.IsRawBytes() {
		if exported.Raw == nil {
			return nil, malformedInput("provider returned no raw bytes for format %q", format)
		}
		return exported.Raw, nil
	}
	if exported.Record == nil {
		return nil, malformedInput("provider returned no interchange record for format %q", format)
	}
	return exported.Record.Serialize()
}
