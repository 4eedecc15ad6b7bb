// Package remote delegates skew correction to a deployed deskew service.
//
// The service contract is the one served by handler.Handler.ServeHTTP (and by
// the Lambda function behind an API Gateway with binary media types): the
// request body is a PNG image posted with Content-Type image/png, and a
// 200 response carries the corrected PNG.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ironsheep/image-deskew/internal/imaging"
	"github.com/rs/zerolog"
)

var (
	// ErrConfiguration is returned when the client is built with a missing or
	// malformed endpoint.
	ErrConfiguration = errors.New("configuration error")

	// ErrRemoteFailure is returned when the service cannot be reached,
	// answers with a non-200 status, or returns a body that is not an image.
	ErrRemoteFailure = errors.New("remote failure")
)

// DefaultTimeout bounds one round trip when Config.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response is quoted in errors.
const maxErrorBody = 512

// HTTPClient abstracts HTTP request execution for testing and custom transports.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client.
type Config struct {
	// Endpoint is the absolute http(s) URL images are posted to. Required.
	Endpoint string

	// Timeout bounds one request when HTTPClient is nil. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport. Optional.
	HTTPClient HTTPClient

	// Logger receives one debug entry per request. Optional.
	Logger *zerolog.Logger
}

// Client posts images to a remote deskew service.
type Client struct {
	endpoint string
	http     HTTPClient
	logger   zerolog.Logger
}

// Response is a successful reply from the service.
type Response struct {
	// Image is the corrected image.
	Image image.Image

	// Angle is the correction the service applied, when it reported one.
	Angle float64

	// HasAngle reports whether the service sent the angle header.
	HasAngle bool
}

// NewClient validates cfg and creates a Client.
//
// Returns ErrConfiguration if the endpoint is empty, not absolute, or not
// http/https.
func NewClient(cfg Config) (*Client, error) {
	if err := ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     httpClient,
		logger:   logger,
	}, nil
}

// ValidateEndpoint checks that endpoint is an absolute http or https URL.
func ValidateEndpoint(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrConfiguration)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: invalid endpoint %q: %w", ErrConfiguration, endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: endpoint %q must use http or https", ErrConfiguration, endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: endpoint %q has no host", ErrConfiguration, endpoint)
	}
	return nil
}

// Endpoint returns the configured service URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Deskew sends img to the service and returns the corrected image.
//
// An invalid input image fails locally with imaging.ErrInvalidImage. Every
// failure after the request is built wraps ErrRemoteFailure; no partial image
// is ever returned.
func (c *Client) Deskew(ctx context.Context, img image.Image) (image.Image, error) {
	resp, err := c.Process(ctx, img)
	if err != nil {
		return nil, err
	}
	return resp.Image, nil
}

// Process is like Deskew but also reports the angle the service applied.
func (c *Client) Process(ctx context.Context, img image.Image) (*Response, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrRemoteFailure, err)
	}
	req.Header.Set("Content-Type", imaging.MimeTypePNG)
	req.Header.Set("Accept", imaging.MimeTypePNG)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %w", ErrRemoteFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: server returned %d: %s", ErrRemoteFailure, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrRemoteFailure, err)
	}

	out, err := imaging.DecodeImage(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteFailure, err)
	}

	result := &Response{Image: out}
	if v := resp.Header.Get(imaging.AngleHeader); v != "" {
		if angle, err := strconv.ParseFloat(v, 64); err == nil {
			result.Angle = angle
			result.HasAngle = true
		}
	}

	c.logger.Debug().
		Str("endpoint", c.endpoint).
		Int("bytes_out", len(data)).
		Int("bytes_in", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("remote deskew completed")

	return result, nil
}

// DeskewFile reads the image at inPath, corrects it remotely and writes the
// result to outPath. The output format follows the extension of outPath.
func (c *Client) DeskewFile(ctx context.Context, inPath, outPath string) (*Response, error) {
	img, err := imaging.Open(inPath)
	if err != nil {
		return nil, err
	}

	resp, err := c.Process(ctx, img)
	if err != nil {
		return nil, err
	}

	if err := imaging.Save(resp.Image, outPath); err != nil {
		return nil, err
	}
	return resp, nil
}
