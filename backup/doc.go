// Package backup guards and produces backup bundles.
//
// A bundle is three files sharing a fingerprint stem: {fp}.pub holds the
// backup identity's public key, {fp}.sig a detached signature and {fp}.backup
// the backup data. The Authorizer decides whether an uploaded bundle may be
// stored. The first public key accepted for a fingerprint becomes its trust
// anchor, and later uploads must carry a signature that verifies against both
// the registered key and the submitted one.
//
// The Acceptor stores authorized bundles and records the content identifier
// of the backup data. The Exporter builds bundles on the client, signing with
// the key of the reserved backup identity.
package backup
