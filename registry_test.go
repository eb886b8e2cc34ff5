package webcrypto_test

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto"
	"github.com/effective-security/x/slices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		registry, err := webcrypto.NewRegistry(&fakeProvider{caps: []webcrypto.AlgorithmCapability{
			{Algorithm: "AES-GCM", Operations: allOps()},
		}})
		require.NoError(t, err)

		supported := registry.SupportedAlgorithms(webcrypto.OpEncrypt)
		assert.True(t, slices.ContainsString(supported, "AES-GCM"))

		prov, ac, ok := registry.Capability(webcrypto.OpWrapKey, "AES-GCM")
		require.True(t, ok)
		assert.Equal(t, "fake", prov.Name())
		assert.True(t, ac.Supports(webcrypto.OpWrapKey))
	})

	t.Run("duplicate_pair", func(t *testing.T) {
		caps := []webcrypto.AlgorithmCapability{
			{Algorithm: "AES-GCM", Operations: []webcrypto.OperationName{webcrypto.OpEncrypt}},
		}
		_, err := webcrypto.NewRegistry(&fakeProvider{caps: caps}, &fakeProvider{caps: caps})
		require.Error(t, err)
		assert.Equal(t, `operation "encrypt" for algorithm "AES-GCM" already registered by provider "fake"`, err.Error())
	})

	t.Run("unknown_operation", func(t *testing.T) {
		_, err := webcrypto.NewRegistry(&fakeProvider{caps: []webcrypto.AlgorithmCapability{
			{Algorithm: "AES-GCM", Operations: []webcrypto.OperationName{"munge"}},
		}})
		require.Error(t, err)
	})

	t.Run("missing_algorithm_name", func(t *testing.T) {
		_, err := webcrypto.NewRegistry(&fakeProvider{caps: []webcrypto.AlgorithmCapability{
			{Algorithm: "  ", Operations: []webcrypto.OperationName{webcrypto.OpEncrypt}},
		}})
		require.Error(t, err)
	})
}

func TestRegistryNormalize(t *testing.T) {
	registry, err := webcrypto.NewRegistry(&fakeProvider{caps: []webcrypto.AlgorithmCapability{
		{Algorithm: "AES-GCM", Operations: allOps()},
	}})
	require.NoError(t, err)

	t.Run("unregistered_pair", func(t *testing.T) {
		_, err := registry.Normalize(webcrypto.OpEncrypt, webcrypto.Alg("RSA-OAEP"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, webcrypto.ErrUnsupportedAlgorithm))
		assert.EqualError(t, err, `algorithm "RSA-OAEP": unsupported algorithm`)
	})

	t.Run("case_insensitive", func(t *testing.T) {
		params, err := registry.Normalize(webcrypto.OpEncrypt, webcrypto.Alg("aes-gcm"))
		require.NoError(t, err)
		assert.Equal(t, "aes-gcm", params.Name)
	})

	t.Run("descriptor_copied", func(t *testing.T) {
		alg := webcrypto.Algorithm{
			Name:   "AES-GCM",
			Params: map[string]any{"length": 256},
		}
		params, err := registry.Normalize(webcrypto.OpGenerateKey, alg)
		require.NoError(t, err)
		assert.Equal(t, 256, params.Length)
	})
}

func TestRegistryConcurrentLookups(t *testing.T) {
	registry, err := webcrypto.NewRegistry(&fakeProvider{caps: []webcrypto.AlgorithmCapability{
		{Algorithm: "AES-GCM", Operations: allOps()},
	}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := registry.Normalize(webcrypto.OpEncrypt, webcrypto.Alg("AES-GCM"))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}

func TestLoaderRegistration(t *testing.T) {
	loader := func(cfg webcrypto.ProviderConfig) (webcrypto.Provider, error) {
		return &fakeProvider{}, nil
	}

	err := webcrypto.Register("test-loader", loader)
	require.NoError(t, err)

	err = webcrypto.Register("test-loader", loader)
	require.Error(t, err)
	assert.Equal(t, "already registered: test-loader", err.Error())

	l := webcrypto.Registered()
	assert.True(t, slices.ContainsString(l, "test-loader"))

	_, err = webcrypto.Unregister("test-loader")
	require.NoError(t, err)
	_, err = webcrypto.Unregister("test-loader")
	require.Error(t, err)
}
