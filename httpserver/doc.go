/*
Package httpserver implements the backup server: an HTTP front end that accepts
signed backup bundles only when the backup upload authorizer allows them.

An upload is a multipart form with three "file" parts named {fp}.pub,
{fp}.sig and {fp}.backup. The first accepted bundle for a fingerprint
registers its public key (trust on first use). Every later upload for that
fingerprint must be signed by the registered key and by the submitted key.

# Endpoints

  - POST /api/backup - Upload a bundle (201, 400, 403 or 429)
  - GET /api/backup/{name} - Download one stored file
  - GET /api/backup/{fingerprint}/cid - Content identifier of the latest backup
  - GET /livez - Liveness check
  - GET /readyz - Readiness check
  - GET /drain - Gracefully mark server as not ready
  - GET /undrain - Mark server as ready

Upload decisions and downloads are counted in Prometheus metrics served on a
separate metrics address. Uploads are rate limited per fingerprint.
*/
package httpserver
