// Package webcrypto provides the dispatch, normalization, and
// capability-validation layer of a cryptographic operations façade.
//
// The package accepts loosely-typed algorithm descriptors, key handles, and
// byte payloads for encryption, signing, digesting, key generation, import,
// export, and key wrapping, and routes each request to a pluggable algorithm
// provider:
//   - AlgorithmRegistry maps (operation, algorithm) pairs to provider
//     capabilities and normalizes descriptors into canonical parameters.
//   - SubtleCrypto is the façade; every operation validates algorithm and
//     key-usage constraints before any provider code runs and returns a
//     single-shot asynchronous result.
//   - Providers implement the actual cryptographic algorithms. The module
//     ships an in-memory software provider (inmemcrypto) and an AWS KMS
//     backed provider (awskmscrypto); custom providers register through the
//     Provider interface.
//
// Provider configuration is typically done through YAML or JSON files that
// specify the provider loader and its specific settings.
package webcrypto
