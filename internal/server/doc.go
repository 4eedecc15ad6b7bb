// Package server implements the MCP (Model Context Protocol) server for the
// deskew tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata
//   - image_dimensions: Get width and height
//
// Skew Analysis:
//   - image_binarize: Otsu foreground mask and threshold
//   - image_skew_angle: Estimate the correction angle only
//   - image_deskew: Rotate the image upright
//   - image_skew_overlay: Draw the fitted rectangle and angle
//
// Tools that produce an image write it to output_path when given, otherwise
// they inline it as base64 PNG.
//
// # Image Caching
//
// Loaded images are cached by path for the lifetime of the process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000 and the Go error string as data. Lines that are not valid JSON
// get a -32700 parse error with a null id.
package server
