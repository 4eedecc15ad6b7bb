package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_deskew").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)

	// Skew Analysis
	case "image_binarize":
		return s.handleImageBinarize(args)
	case "image_skew_angle":
		return s.handleImageSkewAngle(args)
	case "image_deskew":
		return s.handleImageDeskew(args)
	case "image_skew_overlay":
		return s.handleImageSkewOverlay(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{
		Code:    code,
		Message: message,
	}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments and requires a path.
func decodeArgs(args json.RawMessage, dst interface{ path() string }) error {
	if len(args) == 0 {
		return errors.New("missing arguments")
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return err
	}
	if dst.path() == "" {
		return errors.New("path is required")
	}
	return nil
}

// ImageOutput describes an image produced by a tool: either written to disk
// or inlined as base64 PNG.
type ImageOutput struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	OutputPath  string `json:"output_path,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

func writeImage(img image.Image, outputPath string) (ImageOutput, error) {
	b := img.Bounds()
	out := ImageOutput{Width: b.Dx(), Height: b.Dy()}

	if outputPath != "" {
		if err := imaging.Save(img, outputPath); err != nil {
			return out, err
		}
		out.OutputPath = outputPath
		return out, nil
	}

	data, err := imaging.EncodeBase64(img)
	if err != nil {
		return out, err
	}
	out.MimeType = imaging.MimeTypePNG
	out.ImageBase64 = data
	return out, nil
}

// === Basic Image Information Handlers ===

type pathArgs struct {
	Path string `json:"path"`
}

func (a *pathArgs) path() string { return a.Path }

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Skew Analysis Handlers ===

type outputArgs struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
}

func (a *outputArgs) path() string { return a.Path }

// BinarizeResult is returned by image_binarize.
type BinarizeResult struct {
	ImageOutput
	Threshold        uint8 `json:"threshold"`
	ForegroundPixels int   `json:"foreground_pixels"`
}

func (s *Server) handleImageBinarize(args json.RawMessage) (interface{}, error) {
	var a outputArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	mask, level, err := imaging.BinarizeLevel(img)
	if err != nil {
		return nil, err
	}

	count := 0
	for _, v := range mask.Pix {
		if v != 0 {
			count++
		}
	}

	out, err := writeImage(mask, a.OutputPath)
	if err != nil {
		return nil, err
	}
	return &BinarizeResult{
		ImageOutput:      out,
		Threshold:        level,
		ForegroundPixels: count,
	}, nil
}

func (s *Server) handleImageSkewAngle(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return s.corrector.Measure(img)
}

// DeskewResult is returned by image_deskew.
type DeskewResult struct {
	ImageOutput
	*deskew.Result
}

func (s *Server) handleImageDeskew(args json.RawMessage) (interface{}, error) {
	var a outputArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := s.corrector.Analyze(img)
	if err != nil {
		return nil, err
	}

	out, err := writeImage(res.Image, a.OutputPath)
	if err != nil {
		return nil, err
	}
	return &DeskewResult{ImageOutput: out, Result: res}, nil
}

type overlayArgs struct {
	Path       string `json:"path"`
	Color      string `json:"color"`
	OutputPath string `json:"output_path"`
}

func (a *overlayArgs) path() string { return a.Path }

func (s *Server) handleImageSkewOverlay(args json.RawMessage) (interface{}, error) {
	var a overlayArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = imaging.DefaultOverlayColor
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	annotated, res, err := s.corrector.Overlay(img, a.Color)
	if err != nil {
		return nil, err
	}

	out, err := writeImage(annotated, a.OutputPath)
	if err != nil {
		return nil, err
	}
	return &DeskewResult{ImageOutput: out, Result: res}, nil
}
