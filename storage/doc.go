// Package storage provides named blob storage with pluggable backends.
//
// Backup bundles are stored as named objects ({fingerprint}.pub, .sig,
// .backup and the .cid record) across several backend types:
//
//   - File system storage for local development and single-node deployments
//   - S3-compatible storage for cloud deployments
//   - IPFS storage through the node's mutable file system (MFS)
//   - Vault KV v2 storage
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/backups/
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=minio.local:9000
//   - ipfs://127.0.0.1:5001/pgp-backups?timeout=30s
//   - vault://vault.example.com:8200/secret/backups?token=...&tls=true
//
// # Content Identifiers
//
// Upload returns the content identifier of the stored bytes. The IPFS backend
// returns the CID assigned by the node. The other backends compute a CIDv1
// (raw codec, sha2-256) of the data, which matches what the IPFS backend
// reports for small files written with raw leaves.
//
// # Multi-Backend Storage
//
// MultiBlobStore writes to every available backend and reads from the first
// backend that has the object, providing redundancy across locations.
package storage
