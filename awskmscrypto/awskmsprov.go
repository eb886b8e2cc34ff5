// Package awskmscrypto implements a webcrypto provider backed by AWS KMS.
// Key material never leaves KMS: generated keys are handles to customer
// master keys, encryption and wrapping delegate to the KMS Encrypt and
// Decrypt APIs, and the keys are not exportable.
package awskmscrypto

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/webcrypto"
	"github.com/effective-security/webcrypto/metricskey"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/webcrypto", "awskmscrypto")

// ProviderName specifies a provider name
const ProviderName = "AWSKMS"

// AlgKMS is the algorithm name served by this provider.
const AlgKMS = "AWS-KMS"

func init() {
	_ = webcrypto.Register(ProviderName, KmsLoader)
}

// KmsClient interface
type KmsClient interface {
	CreateKey(context.Context, *kms.CreateKeyInput, ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	DescribeKey(context.Context, *kms.DescribeKeyInput, ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	Encrypt(context.Context, *kms.EncryptInput, ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(context.Context, *kms.DecryptInput, ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KmsClientFactory override for unittest
var KmsClientFactory = func(cfg aws.Config, optFns ...func(*kms.Options)) KmsClient {
	return kms.NewFromConfig(cfg, optFns...)
}

// KmsLoader provides loader for KMS provider
func KmsLoader(cfg webcrypto.ProviderConfig) (webcrypto.Provider, error) {
	p, err := Init(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Provider implements webcrypto.Provider for KMS
type Provider struct {
	webcrypto.UnimplementedProvider

	label     string
	kmsClient KmsClient
	endpoint  string
	region    string
}

// Init configures KMS based provider
func Init(cfg webcrypto.ProviderConfig) (*Provider, error) {
	ctx := context.Background()
	kmsAttributes := parseKmsAttributes(cfg.Attributes())
	endpoint := kmsAttributes["Endpoint"]
	region := kmsAttributes["Region"]

	p := &Provider{
		label:    values.Select(cfg.Label() != "", cfg.Label(), ProviderName),
		endpoint: endpoint,
		region:   region,
	}

	var awsops []func(*awsconfig.LoadOptions) error

	if region != "" {
		awsops = append(awsops, awsconfig.WithRegion(region))
	}
	if endpoint != "" {
		// https://aws.github.io/aws-sdk-go-v2/docs/configuring-sdk/endpoints/
		customResolver := aws.EndpointResolverWithOptionsFunc(func(svc, reg string, options ...any) (aws.Endpoint, error) {
			if svc == kms.ServiceID && reg == region {
				ep := aws.Endpoint{
					PartitionID:   "aws",
					URL:           endpoint,
					SigningRegion: region,
				}
				return ep, nil
			}
			// returning EndpointNotFoundError will allow the service to fallback to it's default resolution
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		awsops = append(awsops, awsconfig.WithEndpointResolverWithOptions(customResolver))
	}

	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	token := os.Getenv("AWS_SESSION_TOKEN")
	if id != "" && secret != "" {
		awsops = append(awsops, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(id, secret, token)))
	}

	awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsops...)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	p.kmsClient = KmsClientFactory(awscfg)

	return p, nil
}

func parseKmsAttributes(attributes string) map[string]string {
	var kmsAttributes = make(map[string]string)
	if attributes == "" {
		return kmsAttributes
	}

	attrs := strings.Split(attributes, ",")
	for _, v := range attrs {
		kmsAttr := strings.Split(v, "=")
		if len(kmsAttr) != 2 {
			continue
		}
		kmsAttributes[strings.TrimSpace(kmsAttr[0])] = strings.TrimSpace(kmsAttr[1])
	}

	return kmsAttributes
}

// Name returns the provider name
func (p *Provider) Name() string {
	return ProviderName
}

// Algorithms declares the capabilities of this provider. KMS keys are not
// exportable, so there is no export capability.
func (p *Provider) Algorithms() []webcrypto.AlgorithmCapability {
	return []webcrypto.AlgorithmCapability{
		{
			Algorithm: AlgKMS,
			Operations: []webcrypto.OperationName{
				webcrypto.OpEncrypt,
				webcrypto.OpDecrypt,
				webcrypto.OpWrapKey,
				webcrypto.OpGenerateKey,
				webcrypto.OpImportKey,
			},
		},
	}
}

// Normalize returns canonical parameters. KMS selects cipher details from
// the key itself, so the descriptor carries no algorithm parameters.
func (p *Provider) Normalize(op webcrypto.OperationName, alg webcrypto.Algorithm) (webcrypto.NormalizedAlgorithm, error) {
	if !strings.EqualFold(strings.TrimSpace(alg.Name), AlgKMS) {
		return webcrypto.NormalizedAlgorithm{}, errors.WithMessagef(webcrypto.ErrUnsupportedAlgorithm, "algorithm %q", alg.Name)
	}
	switch op {
	case webcrypto.OpEncrypt, webcrypto.OpDecrypt, webcrypto.OpWrapKey,
		webcrypto.OpGenerateKey, webcrypto.OpImportKey:
		return webcrypto.NormalizedAlgorithm{Name: AlgKMS}, nil
	}
	return webcrypto.NormalizedAlgorithm{}, errors.WithMessagef(webcrypto.ErrUnsupportedAlgorithm,
		"%s does not support %q", AlgKMS, op)
}

// GenerateKey creates a symmetric customer master key in KMS and returns a
// non-extractable handle to it.
func (p *Provider) GenerateKey(ctx context.Context, params webcrypto.NormalizedAlgorithm, _ bool, usages []webcrypto.OperationName) (*webcrypto.GenerateKeyResult, error) {
	defer metricskey.PerfProviderOperation.MeasureSince(time.Now(), ProviderName, "generateKey")

	input := &kms.CreateKeyInput{
		KeySpec:     types.KeySpecSymmetricDefault,
		KeyUsage:    types.KeyUsageTypeEncryptDecrypt,
		Description: aws.String(p.label),
	}
	resp, err := p.kmsClient.CreateKey(ctx, input)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create key with label: %q", p.label)
	}

	keyID := aws.ToString(resp.KeyMetadata.KeyId)
	arn := aws.ToString(resp.KeyMetadata.Arn)

	logger.KV(xlog.INFO, "arn", arn, "id", keyID, "label", p.label)

	key := &webcrypto.CryptoKey{
		Type:      webcrypto.KeyTypeSecret,
		Algorithm: params,
		Usages:    usages,
		Material:  keyID,
	}
	return &webcrypto.GenerateKeyResult{Key: key}, nil
}

// ImportKey accepts an existing KMS key id or ARN as raw bytes and verifies
// it exists. Key material itself cannot be imported through this provider.
func (p *Provider) ImportKey(ctx context.Context, format webcrypto.KeyFormat, data webcrypto.KeyData, params webcrypto.NormalizedAlgorithm, _ bool, usages []webcrypto.OperationName) (*webcrypto.CryptoKey, error) {
	defer metricskey.PerfProviderOperation.MeasureSince(time.Now(), ProviderName, "importKey")

	if format != webcrypto.FormatRaw {
		return nil, errors.Errorf("format %q not supported, KMS keys are referenced by id", format)
	}
	keyID := strings.TrimSpace(string(data.Raw))
	if keyID == "" {
		return nil, errors.Errorf("empty key id")
	}

	ki, err := p.kmsClient.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: &keyID})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to describe key, id=%s", keyID)
	}

	return &webcrypto.CryptoKey{
		Type:      webcrypto.KeyTypeSecret,
		Algorithm: params,
		Usages:    usages,
		Material:  aws.ToString(ki.KeyMetadata.KeyId),
	}, nil
}

// Encrypt delegates to the KMS Encrypt API.
func (p *Provider) Encrypt(ctx context.Context, _ webcrypto.NormalizedAlgorithm, key *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	defer metricskey.PerfProviderOperation.MeasureSince(time.Now(), ProviderName, "encrypt")

	keyID, err := keyHandle(key)
	if err != nil {
		return nil, err
	}
	resp, err := p.kmsClient.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     &keyID,
		Plaintext: data,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to encrypt, id=%s", keyID)
	}
	return resp.CiphertextBlob, nil
}

// Decrypt delegates to the KMS Decrypt API.
func (p *Provider) Decrypt(ctx context.Context, _ webcrypto.NormalizedAlgorithm, key *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	defer metricskey.PerfProviderOperation.MeasureSince(time.Now(), ProviderName, "decrypt")

	keyID, err := keyHandle(key)
	if err != nil {
		return nil, err
	}
	resp, err := p.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          &keyID,
		CiphertextBlob: data,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decrypt, id=%s", keyID)
	}
	return resp.Plaintext, nil
}

// WrapKey seals exported key bytes under the customer master key.
func (p *Provider) WrapKey(ctx context.Context, params webcrypto.NormalizedAlgorithm, wrappingKey *webcrypto.CryptoKey, data []byte) ([]byte, error) {
	return p.Encrypt(ctx, params, wrappingKey, data)
}

func keyHandle(key *webcrypto.CryptoKey) (string, error) {
	keyID, ok := key.Material.(string)
	if !ok || keyID == "" {
		return "", errors.Errorf("key has no KMS handle owned by this provider")
	}
	return keyID, nil
}
