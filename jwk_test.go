package webcrypto_test

import (
	"encoding/base64"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyInterchangeRecord(t *testing.T) {
	t.Run("oct", func(t *testing.T) {
		rec, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"kty":"oct","k":"AAECAwQFBgcICQoLDA0ODw","alg":"AES-GCM"}`))
		require.NoError(t, err)
		assert.Equal(t, "oct", rec.KeyType)

		raw, err := rec.SymmetricKey()
		require.NoError(t, err)
		assert.Len(t, raw, 16)
	})

	t.Run("invalid_json", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`not a record`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
	})

	t.Run("missing_kty", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"k":"AAECAw"}`))
		require.Error(t, err)
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
		assert.EqualError(t, err, "interchange record missing key type: malformed key data")
	})

	t.Run("oct_missing_key_value", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"kty":"oct"}`))
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
	})

	t.Run("oct_bad_encoding", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"kty":"oct","k":"!!!"}`))
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
	})

	t.Run("unknown_kty", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"kty":"XYZ"}`))
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
	})

	t.Run("ec_missing_curve", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"kty":"EC"}`))
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
	})

	t.Run("rsa_missing_fields", func(t *testing.T) {
		_, err := webcrypto.ParseKeyInterchangeRecord([]byte(`{"kty":"RSA","n":"abc"}`))
		assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
	})
}

func TestSymmetricRecordRoundTrip(t *testing.T) {
	raw := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	rec := webcrypto.NewSymmetricRecord("AES-GCM", raw, true, []webcrypto.OperationName{webcrypto.OpEncrypt})

	assert.Equal(t, "oct", rec.KeyType)
	assert.Equal(t, []string{"encrypt"}, rec.KeyOps)
	require.NotNil(t, rec.Extractable)
	assert.True(t, *rec.Extractable)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(raw), rec.K)

	b, err := rec.Serialize()
	require.NoError(t, err)

	parsed, err := webcrypto.ParseKeyInterchangeRecord(b)
	require.NoError(t, err)

	got, err := parsed.SymmetricKey()
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestRecordThumbprint(t *testing.T) {
	raw := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	rec := webcrypto.NewSymmetricRecord("AES-GCM", raw, false, nil)

	tp1, err := rec.Thumbprint()
	require.NoError(t, err)
	assert.NotEmpty(t, tp1)

	// thumbprint depends on key material only
	rec2 := webcrypto.NewSymmetricRecord("HMAC", raw, true, []webcrypto.OperationName{webcrypto.OpSign})
	tp2, err := rec2.Thumbprint()
	require.NoError(t, err)
	assert.Equal(t, tp1, tp2)
}

func TestSymmetricKeyWrongType(t *testing.T) {
	rec := &webcrypto.KeyInterchangeRecord{KeyType: "EC", Crv: "P-256", X: "abc"}
	_, err := rec.SymmetricKey()
	require.Error(t, err)
	assert.True(t, errors.Is(err, webcrypto.ErrMalformedInput))
}
