package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ruteri/pgp-seed-backup/api"
	"github.com/ruteri/pgp-seed-backup/backup"
	"github.com/ruteri/pgp-seed-backup/interfaces"
)

var (
	// ErrUploadRejected is returned when the server refuses a bundle (403).
	ErrUploadRejected = errors.New("backup upload rejected")

	// ErrRateLimited is returned when the server rate limits an upload (429).
	ErrRateLimited = errors.New("backup upload rate limited")
)

// BackupClient talks to a backup server.
type BackupClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBackupClient creates a client for the server at baseURL.
// The optional timeout defaults to 30 seconds.
func NewBackupClient(baseURL string, timeout ...time.Duration) *BackupClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &BackupClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Upload sends the files of one bundle as a multipart form.
func (c *BackupClient) Upload(ctx context.Context, files []backup.File) (*api.UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile(api.FilePartName, f.Name)
		if err != nil {
			return nil, fmt.Errorf("could not build upload form: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("could not build upload form: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("could not build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+api.BackupPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp)
	}

	var parsed api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("could not parse upload response: %w", err)
	}
	return &parsed, nil
}

// Download fetches one stored bundle file by name.
func (c *BackupClient) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.get(ctx, api.BackupPath+"/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

// GetCID returns the content identifier of the latest backup for fingerprint.
func (c *BackupClient) GetCID(ctx context.Context, fingerprint string) (interfaces.ContentID, error) {
	resp, err := c.get(ctx, api.BackupPath+"/"+url.PathEscape(fingerprint)+"/cid")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var parsed api.CIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("could not parse cid response: %w", err)
	}
	return interfaces.ContentID(parsed.CID), nil
}

func (c *BackupClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// statusError maps a non-success response onto the package's sentinel errors.
func statusError(resp *http.Response) error {
	msg := fmt.Sprintf("status %d", resp.StatusCode)
	var parsed api.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&parsed); err == nil && parsed.Error != "" {
		msg = parsed.Error
	}

	switch resp.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUploadRejected, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, msg)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", interfaces.ErrMalformedInput, msg)
	default:
		return fmt.Errorf("backup server returned error %d: %s", resp.StatusCode, msg)
	}
}
