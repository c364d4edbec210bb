// Package hostclient implements the typed HTTP operations the connector
// needs against the host (the data-management service that issues work):
// downloading file/dataset bytes, fetching file/dataset/metadata info,
// fetching a dataset zip, and registering the extractor. It also exposes
// generic GET/POST/PUT/DELETE passthroughs for extractor callbacks that
// need host endpoints the typed methods don't cover.
package hostclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	golog "github.com/ipfs/go-log"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/clowder-framework/extractor-connector/extractor"
)

var log = golog.Logger("hostclient")

// FileDescriptor is the host's representation of a single file, as
// returned from dataset file lists and file info lookups.
type FileDescriptor struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	FilePath string `json:"filepath,omitempty"`
	FileExt  string `json:"file_ext,omitempty"`
	FileSize int64  `json:"filesize,omitempty"`
}

// DatasetInfo is the host's representation of a dataset's own metadata,
// separate from its file list.
type DatasetInfo struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Raw  map[string]interface{} `json:"-"`
}

// Client is the seam process.Processor, resource.Builder, and stage.Stager
// use to reach the host. A real *Client wraps retryablehttp for resilience
// against a transiently-unavailable host; tests substitute a fake.
type Client struct {
	HTTP      *retryablehttp.Client
	SSLVerify bool
}

// New constructs a Client with sane retry defaults: a handful of attempts
// with exponential backoff, logged at debug level through the same logger
// as the rest of the connector rather than retryablehttp's own noisy
// default logger.
func New() *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.Logger = retryableLogAdapter{}
	rc.HTTPClient.Timeout = defaultTimeout
	return &Client{HTTP: rc, SSLVerify: true}
}

// retryableLogAdapter routes retryablehttp's internal logging through golog.
type retryableLogAdapter struct{}

func (retryableLogAdapter) Printf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func normalizeHost(host string) string {
	if host == "" {
		return host
	}
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	return host
}

func (c *Client) doJSON(ctx context.Context, method, url string, body io.Reader, out interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("hostclient: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("hostclient: %s %s: status %d", method, url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// RegisterExtractor posts the extractor's static Info to
// <host>api/extractors?key=<secretKey>. Callers are responsible for
// per-process deduplication (see process.RegistrationSet); this
// method always issues the request.
func (c *Client) RegisterExtractor(ctx context.Context, host, secretKey string, info extractor.Info) error {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/extractors?key=%s", host, secretKey)
	payload, err := json.Marshal(info)
	if err != nil {
		return err
	}
	if err := c.doJSON(ctx, http.MethodPost, url, bytes.NewReader(payload), nil); err != nil {
		return err
	}
	log.Debugw("registered extractor", "host", host, "name", info.Name)
	return nil
}

// DatasetInfo fetches a dataset's own metadata record.
func (c *Client) DatasetInfo(ctx context.Context, host, secretKey, datasetID string) (DatasetInfo, error) {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/datasets/%s?key=%s", host, datasetID, secretKey)
	var raw map[string]interface{}
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return DatasetInfo{}, err
	}
	info := DatasetInfo{ID: datasetID, Raw: raw}
	if name, ok := raw["name"].(string); ok {
		info.Name = name
	}
	return info, nil
}

// DatasetFileList fetches the list of files belonging to a dataset.
func (c *Client) DatasetFileList(ctx context.Context, host, secretKey, datasetID string) ([]FileDescriptor, error) {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/datasets/%s/files?key=%s", host, datasetID, secretKey)
	var files []FileDescriptor
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// DatasetMetadata fetches the dataset-level metadata document.
func (c *Client) DatasetMetadata(ctx context.Context, host, secretKey, datasetID string) (json.RawMessage, error) {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/datasets/%s/metadata.jsonld?key=%s", host, datasetID, secretKey)
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DatasetZip streams the entire dataset as a zip archive.
func (c *Client) DatasetZip(ctx context.Context, host, secretKey, datasetID string) (io.ReadCloser, error) {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/datasets/%s/download?key=%s", host, datasetID, secretKey)
	return c.streamGet(ctx, url)
}

// FileInfo fetches a single file's metadata ("download_info" in the
// original protocol).
func (c *Client) FileInfo(ctx context.Context, host, secretKey, fileID string) (FileDescriptor, error) {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/files/%s/metadata?key=%s", host, fileID, secretKey)
	var fd FileDescriptor
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &fd); err != nil {
		return FileDescriptor{}, err
	}
	fd.ID = fileID
	return fd, nil
}

// FileBytes streams the file's raw content ("download" in the original
// protocol). intermediateID and ext are accepted for parity with the
// original signature (some hosts serve a prior representation keyed by
// intermediateID) but are not required to differ from id/"".
func (c *Client) FileBytes(ctx context.Context, host, secretKey, fileID, intermediateID, ext string) (io.ReadCloser, error) {
	host = normalizeHost(host)
	id := fileID
	if intermediateID != "" {
		id = intermediateID
	}
	url := fmt.Sprintf("%sapi/files/%s?key=%s", host, id, secretKey)
	rc, err := c.streamGet(ctx, url)
	if err != nil {
		return nil, err
	}
	log.Debugw("downloaded file", "id", fileID, "ext", ext)
	return rc, nil
}

// FileMetadata fetches per-file metadata as a JSON document.
func (c *Client) FileMetadata(ctx context.Context, host, secretKey, fileID string) (json.RawMessage, error) {
	host = normalizeHost(host)
	url := fmt.Sprintf("%sapi/files/%s/technicalmetadatajson?key=%s", host, fileID, secretKey)
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) streamGet(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hostclient: GET %s: %w", url, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("hostclient: GET %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		log.Debugf("GET %s: %s", url, humanize.Bytes(uint64(resp.ContentLength)))
	}
	return resp.Body, nil
}

// Get wraps a generic GET call against the host, for extractor callbacks
// that need an endpoint the typed methods above don't cover.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}

// Post wraps a generic POST call against the host.
func (c *Client) Post(ctx context.Context, url string, contentType string, body []byte) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.HTTP.Do(req)
}

// Put wraps a generic PUT call against the host.
func (c *Client) Put(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}

// Delete wraps a generic DELETE call against the host.
func (c *Client) Delete(ctx context.Context, url string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}

// defaultTimeout bounds any single HTTP call the client makes.
const defaultTimeout = 60 * time.Second

// WithSSLVerify toggles TLS certificate verification, mirroring the
// original connector's ssl_verify constructor argument (used against
// hosts behind self-signed certificates in development).
func (c *Client) WithSSLVerify(verify bool) *Client {
	c.SSLVerify = verify
	transport, ok := c.HTTP.HTTPClient.Transport.(*http.Transport)
	if !ok || transport == nil {
		transport = &http.Transport{}
	}
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	}
	transport.TLSClientConfig.InsecureSkipVerify = !verify
	c.HTTP.HTTPClient.Transport = transport
	return c
}
