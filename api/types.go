package api

// Paths of the backup server API.
const (
	BackupPath    = "/api/backup"
	FilePartName  = "file"
	MaxUploadSize = 32 << 20
)

// UploadResponse is returned by POST /api/backup when a bundle is accepted.
type UploadResponse struct {
	Fingerprint string `json:"fingerprint"`
	CID         string `json:"cid"`
}

// CIDResponse is returned by GET /api/backup/{fingerprint}/cid.
type CIDResponse struct {
	Fingerprint string `json:"fingerprint"`
	CID         string `json:"cid"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
