// Package inmemcrypto provides an in-memory software provider for the
// webcrypto facade: AES-GCM encryption and key wrapping, HMAC signatures,
// and SHA-2 digests. It is intended for tests and local development; key
// material lives in process memory only.
package inmemcrypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto"
	"github.com/effective-security/xlog"
	"golang.org/x/crypto/hkdf"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/webcrypto", "inmemcrypto")

// ProviderName specifies a provider name
const ProviderName = "inmem"

// Algorithm names served by this provider.
const (
	AlgAESGCM = "AES-GCM"
	AlgHMAC   = "HMAC"
	AlgSHA256 = "SHA-256"
	AlgSHA384 = "SHA-384"
	AlgSHA512 = "SHA-512"
)

const gcmNonceSize = 12

func init() {
	_ = webcrypto.Register(ProviderName, Loader)
}

// Loader creates the provider from configuration. The optional seed is
// mixed into generated key material.
func Loader(cfg webcrypto.ProviderConfig) (webcrypto.Provider, error) {
	return New([]byte(cfg.Seed()))
}

// Provider implements webcrypto.Provider backed by process memory.
type Provider struct {
	webcrypto.UnimplementedProvider

	seed []byte
}

// New returns an in-memory provider. The seed may be empty, in which case
// generated keys are derived from system entropy alone.
func New(seed []byte) (*Provider, error) {
	p := &Provider{seed: seed}
	return p, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ProviderName
}

// Algorithms declares the capabilities of this provider.
func (p *Provider) Algorithms() []webcrypto.AlgorithmCapability {
	return []webcrypto.AlgorithmCapability{
		{
			Algorithm: AlgAESGCM,
			Operations: []webcrypto.OperationName{
				webcrypto.OpEncrypt,
				webcrypto.OpDecrypt,
				webcrypto.OpWrapKey,
				webcrypto.OpGenerateKey,
				webcrypto.OpImportKey,
				webcrypto.OpExportKey,
			},
		},
		{
			Algorithm: AlgHMAC,
			Operations: []webcrypto.OperationName{
				webcrypto.OpSign,
				webcrypto.OpVerify,
				webcrypto.OpGenerateKey,
				webcrypto.OpImportKey,
				webcrypto.OpExportKey,
			},
		},
		{Algorithm: AlgSHA256, Operations: []webcrypto.OperationName{webcrypto.OpDigest}},
		{Algorithm: AlgSHA384, Operations: []webcrypto.OperationName{webcrypto.OpDigest}},
		{Algorithm: AlgSHA512, Operations: []webcrypto.OperationName{webcrypto.OpDigest}},
	}
}

// Normalize validates algorithm-specific parameters and returns the
// canonical record.
func (p *Provider) Normalize(op webcrypto.OperationName, alg webcrypto.Algorithm) (webcrypto.NormalizedAlgorithm, error) {
	switch canonical(alg.Name) {
	case AlgAESGCM:
		return normalizeAESGCM(op, alg)
	case AlgHMAC:
		return normalizeHMAC(op, alg)
	case AlgSHA256:
		return webcrypto.NormalizedAlgorithm{Name: AlgSHA256}, nil
	case AlgSHA384:
		return webcrypto.NormalizedAlgorithm{Name: AlgSHA384}, nil
	case AlgSHA512:
		return webcrypto.NormalizedAlgorithm{Name: AlgSHA512}, nil
	}
	return webcrypto.NormalizedAlgorithm{}, errors.WithMessagef(webcrypto.ErrUnsupportedAlgorithm, "algorithm %q", alg.Name)
}

func normalizeAESGCM(op webcrypto.OperationName, alg webcrypto.Algorithm) (webcrypto.NormalizedAlgorithm, error) {
	params := webcrypto.NormalizedAlgorithm{Name: AlgAESGCM}
	switch op {
	case webcrypto.OpEncrypt, webcrypto.OpDecrypt, webcrypto.OpWrapKey:
		iv, ok := alg.BytesParam("iv")
		if !ok || len(iv) != gcmNonceSize {
			return webcrypto.NormalizedAlgorithm{}, errors.Errorf("AES-GCM requires a %d-byte iv", gcmNonceSize)
		}
		params.IV = iv
	case webcrypto.OpGenerateKey:
		length, ok := alg.IntParam("length")
		if !ok {
			length = 256
		}
		if length != 128 && length != 192 && length != 256 {
			return webcrypto.NormalizedAlgorithm{}, errors.Errorf("AES-GCM key length must be 128, 192 or 256, got %d", length)
		}
		params.Length = length
	case webcrypto.OpImportKey, webcrypto.OpExportKey:
		// length is taken from the key material
	default:
		return webcrypto.NormalizedAlgorithm{}, errors.WithMessagef(webcrypto.ErrUnsupportedAlgorithm,
			"AES-GCM does not support %q", op)
	}
	return params, nil
}

func normalizeHMAC(op webcrypto.OperationName, alg webcrypto.Algorithm) (webcrypto.NormalizedAlgorithm, error) {
	h, ok := alg.StringParam("hash")
	if !ok {
		h = AlgSHA256
	}
	h = canonical(h)
	if _, err := hashNew(h); err != nil {
		return webcrypto.NormalizedAlgorithm{}, err
	}
	params := webcrypto.NormalizedAlgorithm{Name: AlgHMAC, Hash: h}
	switch op {
	case webcrypto.OpSign, webcrypto.OpVerify, webcrypto.OpImportKey, webcrypto.OpExportKey:
	case webcrypto.OpGenerateKey:
		length, ok := alg.IntParam("length")
		if !ok {
			length = hashSizeBits(h)
		}
		if length <= 0 || length%8 != 0 {
			return webcrypto.NormalizedAlgorithm{}, errors.Errorf("HMAC key length must be a positive multiple of 8, got %d", length)
		}
		params.Length = length
	default:
		return webcrypto.NormalizedAlgorithm{}, errors.WithMessagef(webcrypto.ErrUnsupportedAlgorithm,
			"HMAC does not support %q", op)
	}
	return params, nil
}

// GenerateKey creates a new secret key. Key material is derived from system
// entropy mixed with the provider seed through HKDF.
func (p *Provider) GenerateKey(_ context.Context, params webcrypto.NormalizedAlgorithm, extractable bool, usages []webcrypto.OperationName) (*webcrypto.GenerateKeyResult, error) {
	material, err := p.deriveKeyMaterial(params.Length / 8)
	if err != nil {
		return nil, err
	}
	logger.KV(xlog.DEBUG, "op", "generateKey", "algorithm", params.Name, "bits", params.Length)

	key := &webcrypto.CryptoKey{
		Type:        webcrypto.KeyTypeSecret,
		Extractable: extractable,
		Algorithm:   params,
		Usages:      usages,
		Material:    material,
	}
	return &webcrypto.GenerateKeyResult{Key: key}, nil
}

func (p *Provider) deriveKeyMaterial(size int) ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.WithStack(err)
	}
	secret := p.seed
	if len(secret) == 0 {
		secret = salt
	}
	kdf := hkdf.New(sha256.New, secret, salt, nil)
	material := make([]byte, size)
	if _, err := io.ReadFull(kdf, material); err != nil {
		return nil, errors.WithStack(err)
	}
	return material, nil
}

// ImportKey imports raw or interchange-format symmetric key material.
func (p *Provider) ImportKey(_ context.Context, format webcrypto.KeyFormat, data webcrypto.KeyData, params webcrypto.NormalizedAlgorithm, extractable bool, usages []webcrypto.OperationName) (*webcrypto.CryptoKey, error) {
	var material []byte
	switch format {
	case webcrypto.FormatRaw:
		material = append([]byte(nil), data.Raw...)
	case webcrypto.FormatJWK:
		raw, err := data.Record.SymmetricKey()
		if err != nil {
			return nil, err
		}
		material = raw
	default:
		return nil, errors.Errorf("format %q not supported for symmetric keys", format)
	}

	if params.Name == AlgAESGCM {
		switch len(material) {
		case 16, 24, 32:
		default:
			return nil, errors.Errorf("invalid AES key size: %d bytes", len(material))
		}
	} else if len(material) == 0 {
		return nil, errors.Errorf("empty key material")
	}
	params.Length = len(material) * 8

	return &webcrypto.CryptoKey{
		Type:        webcrypto.KeyTypeSecret,
		Extractable: extractable,
		Algorithm:   params,
		Usages:      usages,
		Material:    material,
	}, nil
}

// ExportKey exports the key material in raw or interchange format.
func (p *Provider) ExportKey(_ context.Context, format webcrypto.KeyFormat, key *webcrypto.CryptoKey) (*webcrypto.ExportedKey, error) {
	material, err := keyMaterial(key)
	if err != nil {
		return nil, err
	}
	switch format {
	case webcrypto.FormatRaw:
		return &webcrypto.ExportedKey{Raw: append([]byte(nil), material...)}, nil
	case webcrypto.FormatJWK:
		rec := webcrypto.NewSymmetricRecord(key.Algorithm.Name, material, key.Extractable, key.Usages)
		return &webcrypto.ExportedKey{Record: rec}, nil
	}
	return nil, errors.Errorf("format %q not supported for symmetric keys", format)
}

// Encrypt seals data with AES-GCM under the given iv.
func (p *Provider) Encrypt(_ context.Context, params webcrypto.NormalizedAlgorithm, key *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, params.IV, data, nil), nil
}

// Decrypt opens an AES-GCM sealed payload.
func (p *Provider) Decrypt(_ context.Context, params webcrypto.NormalizedAlgorithm, key *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, params.IV, data, nil)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to decrypt")
	}
	return plaintext, nil
}

// WrapKey seals exported key bytes, same construction as Encrypt.
func (p *Provider) WrapKey(ctx context.Context, params webcrypto.NormalizedAlgorithm, wrappingKey *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	return p.Encrypt(ctx, params, wrappingKey, data)
}

// Sign computes an HMAC over data.
func (p *Provider) Sign(_ context.Context, key *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	material, err := keyMaterial(key)
	if err != nil {
		return nil, err
	}
	newHash, err := hashNew(key.Algorithm.Hash)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, material)
	mac.Write(data)
	return mac.Sum(nil), nil
}

// Verify checks an HMAC over data.
func (p *Provider) Verify(ctx context.Context, key *webcrypto.CryptoKey, signature, data []byte) (bool, error) {
	expected, err := p.Sign(ctx, key, data)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, signature), nil
}

// Digest computes a SHA-2 digest of data.
func (p *Provider) Digest(_ context.Context, params webcrypto.NormalizedAlgorithm, data []byte) ([]byte, error) {
	newHash, err := hashNew(params.Name)
	if err != nil {
		return nil, err
	}
	h := newHash()
	h.Write(data)
	return h.Sum(nil), nil
}

func newGCM(key *webcrypto.CryptoKey) (cipher.AEAD, error) {
	material, err := keyMaterial(key)
	if err != nil {
		return nil, err
	}
	c, err := aes.NewCipher(material)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return gcm, nil
}

func keyMaterial(key *webcrypto.CryptoKey) ([]byte, error) {
	material, ok := key.Material.([]byte)
	if !ok || len(material) == 0 {
		return nil, errors.Errorf("key has no material owned by this provider")
	}
	return material, nil
}

func hashNew(name string) (func() hash.Hash, error) {
	switch name {
	case AlgSHA256:
		return sha256.New, nil
	case AlgSHA384:
		return sha512.New384, nil
	case AlgSHA512:
		return sha512.New, nil
	}
	return nil, errors.Errorf("unsupported hash: %q", name)
}

func hashSizeBits(name string) int {
	switch name {
	case AlgSHA384:
		return 384
	case AlgSHA512:
		return 512
	default:
		return 256
	}
}

func canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
