package awskmscrypto_test

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto"
	"github.com/effective-security/webcrypto/awskmscrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProviderCfg struct {
	loader string
	label  string
	seed   string
	atts   string
}

func (c *mockProviderCfg) Loader() string     { return c.loader }
func (c *mockProviderCfg) Label() string      { return c.label }
func (c *mockProviderCfg) Seed() string       { return c.seed }
func (c *mockProviderCfg) Attributes() string { return c.atts }

type mockKmsClient struct {
	createKeyInput *kms.CreateKeyInput
	encryptInput   *kms.EncryptInput
	decryptInput   *kms.DecryptInput
	describeErr    error
}

func (m *mockKmsClient) CreateKey(_ context.Context, input *kms.CreateKeyInput, _ ...func(*kms.Options)) (*kms.CreateKeyOutput, error) {
	m.createKeyInput = input
	return &kms.CreateKeyOutput{
		KeyMetadata: &types.KeyMetadata{
			KeyId: aws.String("kms-key-id"),
			Arn:   aws.String("arn:aws:kms:us-west-2:111122223333:key/kms-key-id"),
		},
	}, nil
}

func (m *mockKmsClient) DescribeKey(_ context.Context, input *kms.DescribeKeyInput, _ ...func(*kms.Options)) (*kms.DescribeKeyOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &kms.DescribeKeyOutput{
		KeyMetadata: &types.KeyMetadata{
			KeyId: input.KeyId,
		},
	}, nil
}

func (m *mockKmsClient) Encrypt(_ context.Context, input *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	m.encryptInput = input
	return &kms.EncryptOutput{
		CiphertextBlob: append([]byte("kms:"), input.Plaintext...),
		KeyId:          input.KeyId,
	}, nil
}

func (m *mockKmsClient) Decrypt(_ context.Context, input *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	m.decryptInput = input
	return &kms.DecryptOutput{
		Plaintext: input.CiphertextBlob[4:],
		KeyId:     input.KeyId,
	}, nil
}

func loadTestProvider(t *testing.T) (*mockKmsClient, webcrypto.Provider) {
	t.Helper()

	os.Setenv("AWS_ACCESS_KEY_ID", "notusedbyemulator")
	os.Setenv("AWS_SECRET_ACCESS_KEY", "notusedbyemulator")
	os.Setenv("AWS_DEFAULT_REGION", "us-west-2")

	mock := &mockKmsClient{}
	restore := awskmscrypto.KmsClientFactory
	awskmscrypto.KmsClientFactory = func(cfg aws.Config, optFns ...func(*kms.Options)) awskmscrypto.KmsClient {
		return mock
	}
	t.Cleanup(func() {
		awskmscrypto.KmsClientFactory = restore
	})

	cfg := &mockProviderCfg{
		loader: awskmscrypto.ProviderName,
		label:  "unit-test",
		atts:   "Endpoint=http://localhost:14556,Region=eu-west-2",
	}
	prov, err := awskmscrypto.KmsLoader(cfg)
	require.NoError(t, err)
	require.NotNil(t, prov)
	assert.Equal(t, awskmscrypto.ProviderName, prov.Name())

	return mock, prov
}

func TestKmsProvider(t *testing.T) {
	ctx := context.Background()
	mock, prov := loadTestProvider(t)

	registry, err := webcrypto.NewRegistry(prov)
	require.NoError(t, err)
	subtle := webcrypto.NewSubtleCrypto(registry)

	res, err := subtle.GenerateKey(ctx, webcrypto.Alg("AWS-KMS"), false,
		[]webcrypto.OperationName{webcrypto.OpEncrypt, webcrypto.OpDecrypt, webcrypto.OpWrapKey}).Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, res.Key)

	key := res.Key
	assert.Equal(t, webcrypto.KeyTypeSecret, key.Type)
	assert.False(t, key.Extractable)
	assert.Equal(t, "kms-key-id", key.Material)
	require.NotNil(t, mock.createKeyInput)
	assert.Equal(t, types.KeySpecSymmetricDefault, mock.createKeyInput.KeySpec)
	assert.Equal(t, "unit-test", aws.ToString(mock.createKeyInput.Description))

	plaintext := []byte("sensitive")
	ciphertext, err := subtle.Encrypt(ctx, webcrypto.Alg("AWS-KMS"), key, plaintext).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, append([]byte("kms:"), plaintext...), ciphertext)
	assert.Equal(t, "kms-key-id", aws.ToString(mock.encryptInput.KeyId))

	decrypted, err := subtle.Decrypt(ctx, webcrypto.Alg("AWS-KMS"), key, ciphertext).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	t.Run("export_not_supported", func(t *testing.T) {
		_, err := subtle.ExportKey(ctx, webcrypto.FormatRaw, key).Await(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, webcrypto.ErrUnsupportedAlgorithm))
	})

	t.Run("digest_not_supported", func(t *testing.T) {
		_, err := subtle.Digest(ctx, webcrypto.Alg("AWS-KMS"), []byte("data")).Await(ctx)
		assert.True(t, errors.Is(err, webcrypto.ErrUnsupportedAlgorithm))
	})
}

func TestKmsImportKey(t *testing.T) {
	ctx := context.Background()
	mock, prov := loadTestProvider(t)

	registry, err := webcrypto.NewRegistry(prov)
	require.NoError(t, err)
	subtle := webcrypto.NewSubtleCrypto(registry)

	key, err := subtle.ImportKey(ctx, webcrypto.FormatRaw,
		webcrypto.KeyData{Raw: []byte("arn:aws:kms:us-west-2:111122223333:key/abc")},
		webcrypto.Alg("AWS-KMS"), false,
		[]webcrypto.OperationName{webcrypto.OpEncrypt}).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:kms:us-west-2:111122223333:key/abc", key.Material)
	assert.Equal(t, []webcrypto.OperationName{webcrypto.OpEncrypt}, key.Usages)

	t.Run("describe_error", func(t *testing.T) {
		mock.describeErr = errors.New("NotFoundException")
		_, err := subtle.ImportKey(ctx, webcrypto.FormatRaw,
			webcrypto.KeyData{Raw: []byte("missing")},
			webcrypto.Alg("AWS-KMS"), false,
			[]webcrypto.OperationName{webcrypto.OpEncrypt}).Await(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to describe key")
	})

	t.Run("jwk_not_supported", func(t *testing.T) {
		rec := webcrypto.NewSymmetricRecord("AWS-KMS", []byte("0123456789abcdef"), false, nil)
		_, err := subtle.ImportKey(ctx, webcrypto.FormatJWK,
			webcrypto.KeyData{Record: rec},
			webcrypto.Alg("AWS-KMS"), false,
			[]webcrypto.OperationName{webcrypto.OpEncrypt}).Await(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "KMS keys are referenced by id")
	})
}

func TestParseAttributes(t *testing.T) {
	_, prov := loadTestProvider(t)

	caps := prov.Algorithms()
	require.Len(t, caps, 1)
	assert.Equal(t, "AWS-KMS", caps[0].Algorithm)
	assert.False(t, caps[0].Supports(webcrypto.OpExportKey))
	assert.True(t, caps[0].Supports(webcrypto.OpWrapKey))
}
