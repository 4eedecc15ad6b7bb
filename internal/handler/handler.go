// Package handler exposes skew correction as a request/response service.
//
// The same pipeline (decode, correct, encode as PNG) is offered two ways:
//
//   - HandleProxy serves AWS API Gateway proxy events with a base64 body and
//     answers with a base64 PNG body (IsBase64Encoded true). It is the entry
//     point of the Lambda function.
//   - ServeHTTP serves plain HTTP with raw image bytes in the request body and
//     raw PNG bytes in the response. This is the contract the remote client
//     speaks and what "deskew serve" listens on.
//
// Failures never escape as Go errors or panics. Undecodable payloads map to
// 400, empty or invalid images to 422 and everything else to 500, with a
// JSON body of the form {"error": "..."}.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/imaging"
	"github.com/rs/zerolog"
)

// DefaultMaxBodyBytes bounds the request body accepted by ServeHTTP. API
// Gateway caps payloads well below this.
const DefaultMaxBodyBytes = 32 << 20

// AngleHeader carries the applied correction angle in degrees on successful
// responses.
const AngleHeader = imaging.AngleHeader

// Handler runs skew correction for incoming requests. It is safe for
// concurrent use.
type Handler struct {
	corrector    *deskew.Corrector
	logger       zerolog.Logger
	maxBodyBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes for ServeHTTP.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// New creates a Handler around corrector.
func New(corrector *deskew.Corrector, opts ...Option) *Handler {
	h := &Handler{
		corrector:    corrector,
		logger:       zerolog.Nop(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleProxy handles an API Gateway proxy event whose body is the base64
// text of an image. The returned error is always nil; failures are encoded
// in the response status.
func (h *Handler) HandleProxy(ctx context.Context, req events.APIGatewayProxyRequest) (resp events.APIGatewayProxyResponse, _ error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			resp = h.proxyError(fmt.Errorf("internal error: %v", r))
		}
	}()

	img, err := imaging.DecodeBase64(req.Body)
	if err != nil {
		return h.proxyError(err), nil
	}

	res, err := h.process(ctx, img)
	if err != nil {
		return h.proxyError(err), nil
	}

	body, err := imaging.EncodeBase64(res.Image)
	if err != nil {
		return h.proxyError(fmt.Errorf("failed to encode result: %w", err)), nil
	}

	h.logger.Info().
		Str("request_id", req.RequestContext.RequestID).
		Float64("angle", res.Angle).
		Bool("fallback", res.Fallback).
		Dur("elapsed", time.Since(start)).
		Msg("image deskewed")

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type": imaging.MimeTypePNG,
			AngleHeader:    formatAngle(res.Angle),
		},
		Body:            body,
		IsBase64Encoded: true,
	}, nil
}

// ServeHTTP implements http.Handler.
//
//	POST /         raw image bytes in, raw PNG out
//	POST /deskew   same as POST /
//	GET  /healthz  liveness probe
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.httpError(w, fmt.Errorf("internal error: %v", rec))
		}
	}()

	switch r.URL.Path {
	case "/healthz":
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
		return
	case "/", "/deskew":
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read request body: %v", err))
		return
	}

	img, err := imaging.DecodeImage(data)
	if err != nil {
		h.httpError(w, err)
		return
	}

	res, err := h.process(r.Context(), img)
	if err != nil {
		h.httpError(w, err)
		return
	}

	out, err := imaging.EncodePNG(res.Image)
	if err != nil {
		h.httpError(w, fmt.Errorf("failed to encode result: %w", err))
		return
	}

	h.logger.Info().
		Str("remote", r.RemoteAddr).
		Int("bytes_in", len(data)).
		Int("bytes_out", len(out)).
		Float64("angle", res.Angle).
		Bool("fallback", res.Fallback).
		Msg("image deskewed")

	w.Header().Set("Content-Type", imaging.MimeTypePNG)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Header().Set(AngleHeader, formatAngle(res.Angle))
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// process runs the correction unless the request was already abandoned.
func (h *Handler) process(ctx context.Context, img image.Image) (*deskew.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.corrector.Analyze(img)
}

// StatusFor maps a pipeline error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, imaging.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, imaging.ErrInvalidImage):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) proxyError(err error) events.APIGatewayProxyResponse {
	status := StatusFor(err)
	h.logError(status, err)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       errorBody(err.Error()),
	}
}

func (h *Handler) httpError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	h.logError(status, err)
	writeError(w, status, err.Error())
}

func (h *Handler) logError(status int, err error) {
	level := zerolog.WarnLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	h.logger.WithLevel(level).Err(err).Int("status", status).Msg("request failed")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, errorBody(msg))
}

func errorBody(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

func formatAngle(angle float64) string {
	return strconv.FormatFloat(angle, 'f', 4, 64)
}
