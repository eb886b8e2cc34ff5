package webcrypto

import (
	"crypto"
	"encoding/base64"
	"encoding/json"

	"github.com/cockroachdb/errors"
	jose "github.com/go-jose/go-jose/v3"
)

// KeyInterchangeRecord is the portable, structured key representation used
// by FormatJWK. It follows the JSON Web Key dictionary shape and is distinct
// from both raw byte material and CryptoKey handles.
type KeyInterchangeRecord struct {
	KeyType     string   `json:"kty"`
	Use         string   `json:"use,omitempty"`
	KeyOps      []string `json:"key_ops,omitempty"`
	Algorithm   string   `json:"alg,omitempty"`
	Extractable *bool    `json:"ext,omitempty"`

	// Symmetric key value.
	K string `json:"k,omitempty"`

	// Elliptic curve fields.
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	D   string `json:"d,omitempty"`

	// RSA public fields.
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`
}

// ParseKeyInterchangeRecord coerces raw JSON bytes into a record, failing
// with ErrMalformedInput when the shape is invalid.
func ParseKeyInterchangeRecord(data []byte) (*KeyInterchangeRecord, error) {
	rec := new(KeyInterchangeRecord)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, malformedInput("invalid interchange record: %s", err.Error())
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Validate checks the structural invariants of the record.
func (r *KeyInterchangeRecord) Validate() error {
	switch r.KeyType {
	case "oct":
		if r.K == "" {
			return malformedInput("interchange record missing symmetric key value")
		}
		if _, err := base64.RawURLEncoding.DecodeString(r.K); err != nil {
			return malformedInput("interchange record key value is not base64url")
		}
	case "EC", "OKP":
		if r.Crv == "" || r.X == "" {
			return malformedInput("interchange record missing curve fields")
		}
	case "RSA":
		if r.N == "" || r.E == "" {
			return malformedInput("interchange record missing RSA fields")
		}
	case "":
		return malformedInput("interchange record missing key type")
	default:
		return malformedInput("interchange record key type %q not recognized", r.KeyType)
	}
	return nil
}

// Serialize returns the canonical byte encoding of the record, used when a
// key exported in the interchange format is wrapped.
func (r *KeyInterchangeRecord) Serialize() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// SymmetricKey returns the decoded symmetric key value of an "oct" record.
func (r *KeyInterchangeRecord) SymmetricKey() ([]byte, error) {
	if r.KeyType != "oct" {
		return nil, malformedInput("interchange record is not a symmetric key")
	}
	raw, err := base64.RawURLEncoding.DecodeString(r.K)
	if err != nil {
		return nil, malformedInput("interchange record key value is not base64url")
	}
	return raw, nil
}

// Thumbprint returns the base64url-encoded RFC 7638 thumbprint of the
// record, usable as a stable key identifier.
func (r *KeyInterchangeRecord) Thumbprint() (string, error) {
	jwk, err := r.JWK()
	if err != nil {
		return "", err
	}
	tb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", errors.WithMessage(err, "unable to get thumbprint")
	}
	return base64.RawURLEncoding.EncodeToString(tb), nil
}

// JWK converts the record to a jose.JSONWebKey.
func (r *KeyInterchangeRecord) JWK() (*jose.JSONWebKey, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	k := new(jose.JSONWebKey)
	if err := k.UnmarshalJSON(b); err != nil {
		return nil, malformedInput("invalid interchange record: %s", err.Error())
	}
	return k, nil
}

// NewSymmetricRecord returns an "oct" record for the given raw key material.
func NewSymmetricRecord(alg string, raw []byte, extractable bool, usages []OperationName) *KeyInterchangeRecord {
	ops := make([]string, len(usages))
	for i, u := range usages {
		ops[i] = string(u)
	}
	ext := extractable
	return &KeyInterchangeRecord{
		KeyType:     "oct",
		Algorithm:   alg,
		K:           base64.RawURLEncoding.EncodeToString(raw),
		KeyOps:      ops,
		Extractable: &ext,
	}
}
