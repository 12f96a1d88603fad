// Package figma talks to the design-tool image export endpoint.
package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spherical/scene-converter/internal/config"
	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
)

const (
	// DefaultHost is the public export endpoint
	DefaultHost = "https://api.figma.com"

	tokenHeader = "X-Figma-Token"

	// cap on the exported markup, exports are single nodes
	maxDownloadBytes = 32 << 20
)

// Client handles communication with the image export API
type Client struct {
	host       string
	token      string
	authScheme string
	httpClient *http.Client
	logger     *observability.Logger
}

// ImagesResponse is the body returned by GET /v1/images/{key}
type ImagesResponse struct {
	Err    *string           `json:"err"`
	Images map[string]string `json:"images"`
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new export client from the figma config section
func NewClient(cfg config.FigmaConfig, opts ...Option) *Client {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		host:       host,
		token:      cfg.Token,
		authScheme: cfg.AuthScheme,
		httpClient: &http.Client{Timeout: timeout},
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExportSVG resolves the node to a temporary SVG location and downloads it.
func (c *Client) ExportSVG(ctx context.Context, ref domain.RemoteReference) ([]byte, error) {
	location, err := c.ImageURL(ctx, ref)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, location)
}

// ImageURL asks the export endpoint for an SVG rendering of one node and
// returns the temporary location it reports.
func (c *Client) ImageURL(ctx context.Context, ref domain.RemoteReference) (string, error) {
	if c.token == "" {
		return "", domain.ConfigError("remote export credential is not configured (set FIGMA_TOKEN)", nil)
	}
	if ref.FileKey == "" || ref.NodeID == "" {
		return "", domain.ValidationError("file key and node id are required", nil)
	}

	endpoint := c.endpoint(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", domain.RemoteUnavailableError(err)
	}
	c.authorize(req)

	log := c.logger.WithOperation("image_url")
	log.Debug().Str("file_key", ref.FileKey).Str("node_id", ref.NodeID).Msg("Requesting svg export")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Export request failed")
		return "", domain.RemoteUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Export request rejected")
		return "", domain.RemoteUnavailableError(fmt.Errorf("export returned status %d", resp.StatusCode))
	}

	var payload ImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Error().Err(err).Msg("Export response is not valid JSON")
		return "", domain.RemoteUnavailableError(err)
	}

	location := payload.Images[ref.NodeID]
	if location == "" {
		reason := "node missing from export response"
		if payload.Err != nil && *payload.Err != "" {
			reason = *payload.Err
		}
		log.Error().Str("node_id", ref.NodeID).Str("reason", reason).Msg("Export has no image for node")
		return "", domain.RemoteUnavailableError(fmt.Errorf("%s", reason))
	}
	return location, nil
}

// Download fetches the exported markup from its temporary location. The
// location is pre-signed, so no credential is sent.
func (c *Client) Download(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, domain.RemoteUnavailableError(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("Export download failed")
		return nil, domain.RemoteUnavailableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error().Int("status", resp.StatusCode).Msg("Export download rejected")
		return nil, domain.RemoteUnavailableError(fmt.Errorf("download returned status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, domain.RemoteUnavailableError(err)
	}
	if int64(len(data)) > maxDownloadBytes {
		c.logger.Error().Int64("limit", maxDownloadBytes).Msg("Export download too large")
		return nil, domain.RemoteUnavailableError(fmt.Errorf("export exceeds %d bytes", maxDownloadBytes))
	}
	return data, nil
}

func (c *Client) endpoint(ref domain.RemoteReference) string {
	q := url.Values{}
	q.Set("ids", ref.NodeID)
	q.Set("format", "svg")
	return fmt.Sprintf("%s/v1/images/%s?%s", c.host, url.PathEscape(ref.FileKey), q.Encode())
}

func (c *Client) authorize(req *http.Request) {
	if c.authScheme == config.AuthSchemeBearer {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	req.Header.Set(tokenHeader, c.token)
}
